package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/mapnav/navclient/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the client workflows.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"min_lat": &graphql.Field{Type: graphql.Float},
			"min_lng": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
			"max_lng": &graphql.Field{Type: graphql.Float},
		},
	})

	favoriteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Favorite",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"name":     &graphql.Field{Type: graphql.String},
			"address":  &graphql.Field{Type: graphql.String},
			"tag":      &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: coordinateType},
		},
	})

	poiType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PointOfInterest",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"type":        &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"address":     &graphql.Field{Type: graphql.String},
			"phone":       &graphql.Field{Type: graphql.String},
			"district":    &graphql.Field{Type: graphql.String},
			"distance_km": &graphql.Field{Type: graphql.Float},
			"rating":      &graphql.Field{Type: graphql.Float},
			"location":    &graphql.Field{Type: coordinateType},
		},
	})

	stepType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteStep",
		Fields: graphql.Fields{
			"instruction": &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"distance":    &graphql.Field{Type: graphql.Float},
			"duration":    &graphql.Field{Type: graphql.Float},
		},
	})

	routeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Route",
		Fields: graphql.Fields{
			"mode":       &graphql.Field{Type: graphql.String},
			"distance":   &graphql.Field{Type: graphql.Float},
			"duration":   &graphql.Field{Type: graphql.Float},
			"steps":      &graphql.Field{Type: graphql.NewList(stepType)},
			"fetched_at": &graphql.Field{Type: graphql.DateTime},
			"bounds": &graphql.Field{
				Type: boundsType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r, _ := p.Source.(*domain.RouteGeometry)
					if b, ok := r.Bounds(); ok {
						return b, nil
					}
					return nil, nil
				},
			},
		},
	})

	discoveryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Discovery",
		Fields: graphql.Fields{
			"type":       &graphql.Field{Type: graphql.String},
			"state":      &graphql.Field{Type: graphql.String},
			"count":      &graphql.Field{Type: graphql.Int},
			"last_error": &graphql.Field{Type: graphql.String},
			"pois": &graphql.Field{
				Type: graphql.NewList(poiType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					src, _ := p.Source.(map[string]interface{})
					t, _ := src["type"].(domain.POIType)
					return deps.Discovery.Results(t), nil
				},
			},
		},
	})

	areaSelectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AreaSelection",
		Fields: graphql.Fields{
			"state":   &graphql.Field{Type: graphql.String},
			"point_a": &graphql.Field{Type: coordinateType},
			"point_b": &graphql.Field{Type: coordinateType},
			"bounds":  &graphql.Field{Type: boundsType},
		},
	})

	areaPreferenceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "AreaPreference",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"type":       &graphql.Field{Type: graphql.String},
			"reason":     &graphql.Field{Type: graphql.String},
			"bounds":     &graphql.Field{Type: boundsType},
			"created_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	trafficType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Traffic",
		Fields: graphql.Fields{
			"state":      &graphql.Field{Type: graphql.String},
			"enabled":    &graphql.Field{Type: graphql.Boolean},
			"last_error": &graphql.Field{Type: graphql.String},
		},
	})

	discoveryMap := func(t domain.POIType) map[string]interface{} {
		st := deps.Discovery.Status(t)
		return map[string]interface{}{
			"type":       st.Type,
			"state":      st.State,
			"count":      st.Count,
			"last_error": st.LastErr,
		}
	}
	trafficView := func() TrafficView {
		return TrafficView{
			State:     deps.Traffic.State(),
			Enabled:   deps.Traffic.Enabled(),
			LastError: deps.Traffic.LastError(),
		}
	}
	parseType := func(p graphql.ResolveParams) (domain.POIType, error) {
		s, _ := p.Args["type"].(string)
		return domain.ParsePOIType(s)
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"authenticated": &graphql.Field{
				Type: graphql.Boolean,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Session.Authenticated(), nil
				},
			},
			"favorites": &graphql.Field{
				Type:        graphql.NewList(favoriteType),
				Description: "Favorites from the active backend",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Favorites.List(), nil
				},
			},
			"favorite": &graphql.Field{
				Type: favoriteType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					if f, ok := deps.Favorites.Get(id); ok {
						return f, nil
					}
					return nil, nil
				},
			},
			"route": &graphql.Field{
				Type:        routeType,
				Description: "The route currently on the map",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if r := deps.Routes.Current(); r != nil {
						return r, nil
					}
					return nil, nil
				},
			},
			"discovery": &graphql.Field{
				Type: discoveryType,
				Args: graphql.FieldConfigArgument{
					"type": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, err := parseType(p)
					if err != nil {
						return nil, err
					}
					return discoveryMap(t), nil
				},
			},
			"areaSelection": &graphql.Field{
				Type: areaSelectionType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Areas.Selection(), nil
				},
			},
			"areaPreferences": &graphql.Field{
				Type: graphql.NewList(areaPreferenceType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Areas.List(p.Context)
				},
			},
			"traffic": &graphql.Field{
				Type: trafficType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return trafficView(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"addFavorite": &graphql.Field{
				Type: favoriteType,
				Args: graphql.FieldConfigArgument{
					"name":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"address": &graphql.ArgumentConfig{Type: graphql.String},
					"tag":     &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					c := domain.FavoriteCandidate{
						Location: domain.Coordinate{Lat: p.Args["lat"].(float64), Lng: p.Args["lng"].(float64)},
					}
					c.Name, _ = p.Args["name"].(string)
					c.Address, _ = p.Args["address"].(string)
					c.Tag, _ = p.Args["tag"].(string)
					if err := c.Validate(); err != nil {
						return nil, err
					}
					return deps.Favorites.Add(p.Context, c)
				},
			},
			"removeFavorite": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, _ := p.Args["id"].(string)
					if err := deps.Favorites.Remove(p.Context, id); err != nil {
						return false, err
					}
					return true, nil
				},
			},
			"discover": &graphql.Field{
				Type: discoveryType,
				Args: graphql.FieldConfigArgument{
					"type": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					t, err := parseType(p)
					if err != nil {
						return nil, err
					}
					if _, err := deps.Discovery.Discover(p.Context, t); err != nil && !errors.Is(err, domain.ErrNoResults) {
						return nil, err
					}
					return discoveryMap(t), nil
				},
			},
			"setTraffic": &graphql.Field{
				Type: trafficType,
				Args: graphql.FieldConfigArgument{
					"enabled": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Boolean)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var err error
					if on, _ := p.Args["enabled"].(bool); on {
						err = deps.Traffic.Enable(p.Context)
					} else {
						err = deps.Traffic.Disable(p.Context)
					}
					if err != nil {
						return nil, err
					}
					return trafficView(), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
