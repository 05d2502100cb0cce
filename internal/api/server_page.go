package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/aria/internal/navigator"
	"github.com/dgnsrekt/aria/internal/scripts"
	"github.com/dgnsrekt/aria/internal/storage"
)

func registerPageHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "navigate", Method: http.MethodPost, Path: "/api/v1/navigate", Summary: "Load a URL in the active tab", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct {
			Body struct {
				URL string `json:"url" required:"true" doc:"URL to load"`
			}
		}) (*statusOutput, error) {
			if err := svc.Navigate(ctx, input.Body.URL); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "navigated"
			return out, nil
		})

	type contentOutput struct {
		Body storage.Capture
	}

	huma.Register(api, huma.Operation{OperationID: "get-content", Method: http.MethodGet, Path: "/api/v1/content", Summary: "Visible text of the active tab", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct{}) (*contentOutput, error) {
			c, err := svc.Capture(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &contentOutput{}
			out.Body = c
			return out, nil
		})

	type linksOutput struct {
		Body struct {
			Links []navigator.Link `json:"links"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-links", Method: http.MethodGet, Path: "/api/v1/links", Summary: "Links in the active tab", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct{}) (*linksOutput, error) {
			links, err := svc.Links(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &linksOutput{}
			out.Body.Links = links
			if out.Body.Links == nil {
				out.Body.Links = []navigator.Link{}
			}
			return out, nil
		})

	type contextOutput struct {
		Body struct {
			Context string `json:"context"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "resolve-context", Method: http.MethodPost, Path: "/api/v1/context", Summary: "Gather content of tabs referenced in a prompt", Tags: []string{"Page"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Prompt string `json:"prompt" required:"true" doc:"Prompt with tab \"name\" or tag:name references"`
			}
		}) (*contextOutput, error) {
			gathered, err := svc.ResolveContext(ctx, input.Body.Prompt)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &contextOutput{}
			out.Body.Context = gathered
			return out, nil
		})
}

func registerScriptHandlers(api huma.API, svc Service) {
	type listScriptsOutput struct {
		Body struct {
			Scripts []*scripts.Script `json:"scripts"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-scripts", Method: http.MethodGet, Path: "/api/v1/scripts", Summary: "List prompt scripts", Tags: []string{"Scripts"}},
		func(ctx context.Context, input *struct{}) (*listScriptsOutput, error) {
			list, err := svc.ListScripts(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listScriptsOutput{}
			out.Body.Scripts = list
			if out.Body.Scripts == nil {
				out.Body.Scripts = []*scripts.Script{}
			}
			return out, nil
		})

	type scriptOutput struct {
		Body struct {
			Name         string    `json:"name"`
			Prompt       string    `json:"prompt"`
			CreatedAt    time.Time `json:"created_at"`
			Placeholders []string  `json:"placeholders"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "get-script", Method: http.MethodGet, Path: "/api/v1/scripts/{name}", Summary: "Get a prompt script", Tags: []string{"Scripts"}},
		func(ctx context.Context, input *struct {
			Name string `path:"name"`
		}) (*scriptOutput, error) {
			sc, params, err := svc.GetScript(ctx, input.Name)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &scriptOutput{}
			out.Body.Name = sc.Name
			out.Body.Prompt = sc.Prompt
			out.Body.CreatedAt = sc.CreatedAt
			out.Body.Placeholders = params
			if out.Body.Placeholders == nil {
				out.Body.Placeholders = []string{}
			}
			return out, nil
		})
}
