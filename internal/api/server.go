package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgnsrekt/aria/internal/browser"
	"github.com/dgnsrekt/aria/internal/navigator"
	"github.com/dgnsrekt/aria/internal/scripts"
	"github.com/dgnsrekt/aria/internal/session"
	"github.com/dgnsrekt/aria/internal/snapshot"
	"github.com/dgnsrekt/aria/internal/storage"
	"github.com/dgnsrekt/aria/internal/tabs"
)

type Service interface {
	ListSessions(ctx context.Context) ([]session.Descriptor, browser.Kind, error)
	ListTabs(ctx context.Context) ([]tabs.TabInfo, error)
	GotoTab(ctx context.Context, id string) (string, error)
	TagTab(ctx context.Context, id, tag string) error
	TabsByTag(ctx context.Context, tag string) ([]string, error)
	OpenTab(ctx context.Context, url string) (string, error)
	Navigate(ctx context.Context, url string) error
	Capture(ctx context.Context) (storage.Capture, error)
	Links(ctx context.Context) ([]navigator.Link, error)
	ResolveContext(ctx context.Context, prompt string) (string, error)
	ListScripts(ctx context.Context) ([]*scripts.Script, error)
	GetScript(ctx context.Context, name string) (*scripts.Script, []string, error)
	Screenshot(ctx context.Context, notes string) (snapshot.Meta, error)
	ListScreenshots(ctx context.Context) ([]snapshot.Meta, error)
	GetScreenshot(ctx context.Context, id string) (snapshot.Meta, error)
	ReadScreenshot(ctx context.Context, id string) ([]byte, string, error)
	DeleteScreenshot(ctx context.Context, id string) error
}

type statusOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func NewServer(svc Service) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(traceRequests)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig(apiTitle, apiVersion)
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	docs := docsPage(apiTitle, cfg.OpenAPIPath+".json")
	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(docs); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/healthz", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*statusOutput, error) {
			out := &statusOutput{}
			out.Body.Status = "ok"
			return out, nil
		})

	registerSessionHandlers(api, svc)
	registerTabHandlers(api, svc)
	registerPageHandlers(api, svc)
	registerScriptHandlers(api, svc)
	registerScreenshotHandlers(api, svc)

	return router
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var coded *navigator.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case navigator.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case navigator.CodeTabMissing, navigator.CodeShotMissing:
			return huma.Error404NotFound(coded.Message)
		case navigator.CodeScript:
			if errors.Is(err, scripts.ErrNotFound) {
				return huma.Error404NotFound(coded.Message)
			}
			return huma.Error400BadRequest(err.Error())
		case navigator.CodeSession:
			return huma.Error503ServiceUnavailable(coded.Message)
		case navigator.CodeNavigation, navigator.CodeBrowser, navigator.CodeAIService:
			return huma.Error502BadGateway(err.Error())
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}
