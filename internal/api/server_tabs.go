package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/session"
	"github.com/dgnsrekt/aria/internal/tabs"
)

func registerSessionHandlers(api huma.API, svc Service) {
	type listSessionsOutput struct {
		Body struct {
			Current  browser.Kind         `json:"current,omitempty"`
			Sessions []session.Descriptor `json:"sessions"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-sessions", Method: http.MethodGet, Path: "/api/v1/sessions", Summary: "List persisted browser sessions", Tags: []string{"Sessions"}},
		func(ctx context.Context, input *struct{}) (*listSessionsOutput, error) {
			list, current, err := svc.ListSessions(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listSessionsOutput{}
			out.Body.Current = current
			out.Body.Sessions = list
			if out.Body.Sessions == nil {
				out.Body.Sessions = []session.Descriptor{}
			}
			return out, nil
		})
}

func registerTabHandlers(api huma.API, svc Service) {
	type listTabsOutput struct {
		Body struct {
			Tabs []tabs.TabInfo `json:"tabs"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-tabs", Method: http.MethodGet, Path: "/api/v1/tabs", Summary: "List tabs of the current session", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct{}) (*listTabsOutput, error) {
			list, err := svc.ListTabs(ctx)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listTabsOutput{}
			out.Body.Tabs = list
			if out.Body.Tabs == nil {
				out.Body.Tabs = []tabs.TabInfo{}
			}
			return out, nil
		})

	type handleOutput struct {
		Body struct {
			Handle string `json:"handle"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "goto-tab", Method: http.MethodPost, Path: "/api/v1/tabs/goto", Summary: "Switch to a tab by handle, index, title or URL", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Tab string `json:"tab" required:"true" doc:"Window handle, 0-based index, title or URL fragment"`
			}
		}) (*handleOutput, error) {
			handle, err := svc.GotoTab(ctx, input.Body.Tab)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &handleOutput{}
			out.Body.Handle = handle
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "open-tab", Method: http.MethodPost, Path: "/api/v1/tabs/open", Summary: "Open a new tab and make it active", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct {
			Body struct {
				URL string `json:"url,omitempty" doc:"Optional URL to load in the new tab"`
			}
		}) (*handleOutput, error) {
			handle, err := svc.OpenTab(ctx, input.Body.URL)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &handleOutput{}
			out.Body.Handle = handle
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "tag-tab", Method: http.MethodPost, Path: "/api/v1/tabs/tag", Summary: "Tag a tab", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Tab string `json:"tab" required:"true" doc:"Tab identifier"`
				Tag string `json:"tag" required:"true" doc:"Tag to add"`
			}
		}) (*statusOutput, error) {
			if err := svc.TagTab(ctx, input.Body.Tab, input.Body.Tag); err != nil {
				return nil, mapErr(err)
			}
			out := &statusOutput{}
			out.Body.Status = "tagged"
			return out, nil
		})

	type taggedOutput struct {
		Body struct {
			Tag     string   `json:"tag"`
			Handles []string `json:"handles"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "tabs-by-tag", Method: http.MethodGet, Path: "/api/v1/tags/{tag}", Summary: "List live tabs carrying a tag", Tags: []string{"Tabs"}},
		func(ctx context.Context, input *struct {
			Tag string `path:"tag"`
		}) (*taggedOutput, error) {
			handles, err := svc.TabsByTag(ctx, input.Tag)
			if err != nil {
				return nil, mapErr(err)
			}
			out := &taggedOutput{}
			out.Body.Tag = input.Tag
			out.Body.Handles = handles
			if out.Body.Handles == nil {
				out.Body.Handles = []string{}
			}
			return out, nil
		})
}
