package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"quizzz-service/internal/app"
	"quizzz-service/internal/auth"
	"quizzz-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

// IdentityService is the identity provider as seen by the HTTP surface.
type IdentityService interface {
	app.IdentityProvider
	Register(ctx context.Context, name, email, password string) (auth.Session, error)
	SignIn(ctx context.Context, creds auth.Credentials) (auth.Session, error)
	SignOut(ctx context.Context, token string) error
	Identify(ctx context.Context, token string) (domain.Identity, error)
	UpdateProfile(ctx context.Context, uid string, update auth.ProfileUpdate) (domain.Identity, error)
	ChangePassword(ctx context.Context, uid, oldPassword, newPassword string) error
}

// NoticeSource hands out the pending one-shot notices of a user.
type NoticeSource interface {
	Drain(userID string) []domain.Notice
}

// CoverReader serves stored cover images.
type CoverReader interface {
	Get(key string) (io.ReadCloser, error)
}

type Deps struct {
	Authoring *app.AuthoringService
	Play      *app.PlayService
	Catalog   *app.Catalog
	Store     app.DocumentStore
	Identity  IdentityService
	Notices   NoticeSource
	Covers    CoverReader
}

type Options struct {
	AllowedOrigins []string
	MaxCoverBytes  int64
}

// Server holds the handlers of the quiz HTTP and WebSocket surface.
type Server struct {
	authoring *app.AuthoringService
	play      *app.PlayService
	catalog   *app.Catalog
	store     app.DocumentStore
	identity  IdentityService
	notices   NoticeSource
	covers    CoverReader
	maxCover  int64
	upgrader  websocket.Upgrader
}

func NewServer(deps Deps, opts Options) *Server {
	maxCover := opts.MaxCoverBytes
	if maxCover <= 0 {
		maxCover = 5 << 20
	}
	return &Server{
		authoring: deps.Authoring,
		play:      deps.Play,
		catalog:   deps.Catalog,
		store:     deps.Store,
		identity:  deps.Identity,
		notices:   deps.Notices,
		covers:    deps.Covers,
		maxCover:  maxCover,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// NewRouter builds the chi router for deps.
func NewRouter(deps Deps, opts Options) http.Handler {
	s := NewServer(deps, opts)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/covers/*", s.serveCover)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.register)
			r.Post("/login", s.login)
			r.Post("/guest", s.guest)
			r.Group(func(r chi.Router) {
				r.Use(s.requireAuth)
				r.Post("/logout", s.logout)
				r.Get("/me", s.me)
				r.Put("/profile", s.updateProfile)
				r.Put("/password", s.changePassword)
			})
		})

		r.Route("/drafts", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Use(middleware.Timeout(30 * time.Second))
			r.Post("/", s.createDraft)
			r.Route("/{draftID}", func(r chi.Router) {
				r.Get("/", s.loadDraft)
				r.Delete("/", s.discardDraft)
				r.Patch("/", s.setField)
				r.Post("/tags", s.addTag)
				r.Put("/tag-input", s.typeTagInput)
				r.Delete("/tags/{index}", s.removeTag)
				r.Post("/questions", s.addQuestion)
				r.Delete("/questions/{questionID}", s.removeQuestion)
				r.Put("/questions/{questionID}/title", s.setQuestionTitle)
				r.Put("/questions/{questionID}/type", s.setQuestionType)
				r.Put("/questions/{questionID}/options/{index}", s.setOptionLabel)
				r.Post("/questions/{questionID}/options/{index}/toggle", s.toggleOption)
				r.Post("/cover", s.uploadCover)
				r.Post("/publish", s.publish)
			})
		})

		r.Route("/quizzes", func(r chi.Router) {
			r.Get("/", s.listQuizzes)
			r.Get("/{quizID}", s.getQuiz)
			r.With(s.requireAuth).Delete("/{quizID}", s.deleteQuiz)
		})

		r.Get("/ws/quizzes", s.serveCatalogWS)
		r.Get("/ws/play", s.servePlayWS)
	})
	return r
}
