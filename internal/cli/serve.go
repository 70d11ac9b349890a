package cli

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/metrics/export/prometheus"
	"github.com/MrEthical07/goGate/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo site",
		Long: `Serve an HTML demo: /login and /signup accept any credentials, /home and
/dashboard are restricted, and /metrics exposes Prometheus counters. The
server holds a single session shared by every visitor.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := a.settings.logger(cmd.ErrOrStderr())
			return serve(cmd.Context(), a.settings.Addr, a.store, logger)
		},
	}

	cmd.Flags().StringVar(&a.flags.Addr, "addr", "", "listen address (default :8080)")

	return cmd
}

func serve(ctx context.Context, addr string, store *goGate.Store, logger *slog.Logger) error {
	st := store.StorageStatus(ctx)
	if st.Err != nil {
		return fmt.Errorf("storage unreachable: %w", st.Err)
	}
	logger.Info("goGate: storage ready", "backend", st.Backend, "location", st.Location, "latency", st.Latency)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newSiteHandler(store, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("goGate: listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("goGate: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// site renders the entry views and the restricted pages.
type site struct {
	store  *goGate.Store
	logger *slog.Logger
}

func newSiteHandler(store *goGate.Store, logger *slog.Logger) http.Handler {
	s := &site{store: store, logger: logger}
	guard := middleware.Guard(store)
	landing := store.Guard().LandingPath

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, landing, http.StatusFound)
	})
	mux.HandleFunc("GET /login", s.loginForm)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("GET /signup", s.signupForm)
	mux.HandleFunc("POST /signup", s.signup)
	mux.HandleFunc("POST /logout", s.logout)
	mux.Handle("GET /home", guard(http.HandlerFunc(s.home)))
	mux.Handle("GET /dashboard", guard(http.HandlerFunc(s.home)))
	mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(store).Handler())

	return mux
}

type formView struct {
	Title   string
	Action  string
	From    string
	Email   string
	Name    string
	Error   string
	Signup  bool
	AltLink string
}

type homeView struct {
	Path     string
	Identity goGate.Identity
}

var pages = template.Must(template.New("form").Parse(`<!doctype html>
<html><head><title>{{.Title}}</title></head><body>
<h1>{{.Title}}</h1>
{{if .Error}}<p role="alert">{{.Error}}</p>{{end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="from" value="{{.From}}">
{{if .Signup}}<label>Full name <input name="name" value="{{.Name}}" required></label>{{end}}
<label>Email <input name="email" type="email" value="{{.Email}}" required></label>
<label>Password <input name="password" type="password" required></label>
<button type="submit">{{.Title}}</button>
</form>
<p><a href="{{.AltLink}}">{{if .Signup}}Sign in instead{{else}}Create an account{{end}}</a></p>
<p><small>Demo: any email and password are accepted.</small></p>
</body></html>
`))

var homePage = template.Must(template.New("home").Parse(`<!doctype html>
<html><head><title>Dashboard</title></head><body>
<h1>Welcome back, {{.Identity.DisplayName}}!</h1>
<dl>
<dt>Name</dt><dd>{{.Identity.DisplayName}}</dd>
<dt>Email</dt><dd>{{.Identity.Email}}</dd>
<dt>User ID</dt><dd><code>{{.Identity.ID}}</code></dd>
</dl>
<p>You are viewing {{.Path}}, a restricted page.</p>
<form method="post" action="/logout"><button type="submit">Logout</button></form>
</body></html>
`))

func (s *site) render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Warn("goGate: render failed", "template", tmpl.Name(), "error", err)
	}
}

func (s *site) loginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pages, formView{
		Title:   "Sign In",
		Action:  "/login",
		From:    middleware.PendingDestination(r),
		AltLink: "/signup",
	})
}

func (s *site) signupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pages, formView{
		Title:   "Create Account",
		Action:  "/signup",
		From:    middleware.PendingDestination(r),
		Signup:  true,
		AltLink: "/login",
	})
}

func (s *site) login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	from := middleware.PendingDestination(r)

	if _, err := s.store.Login(r.Context(), email, r.PostFormValue("password")); err != nil {
		s.render(w, http.StatusUnauthorized, pages, formView{
			Title:   "Sign In",
			Action:  "/login",
			From:    from,
			Email:   email,
			Error:   "Login failed. Please try again.",
			AltLink: "/signup",
		})
		return
	}

	http.Redirect(w, r, s.store.ResolveDestination(from), http.StatusSeeOther)
}

func (s *site) signup(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	name := r.PostFormValue("name")
	from := middleware.PendingDestination(r)

	if _, err := s.store.Signup(r.Context(), email, r.PostFormValue("password"), name); err != nil {
		s.render(w, http.StatusUnauthorized, pages, formView{
			Title:   "Create Account",
			Action:  "/signup",
			From:    from,
			Email:   email,
			Name:    name,
			Error:   "Signup failed. Please try again.",
			Signup:  true,
			AltLink: "/login",
		})
		return
	}

	http.Redirect(w, r, s.store.ResolveDestination(from), http.StatusSeeOther)
}

func (s *site) logout(w http.ResponseWriter, r *http.Request) {
	s.store.Logout(r.Context())
	http.Redirect(w, r, s.store.Guard().EntryPath, http.StatusSeeOther)
}

func (s *site) home(w http.ResponseWriter, r *http.Request) {
	store := goGate.StoreFromContext(r.Context())
	id, ok := store.Identity()
	if !ok {
		// Logged out between the guard check and here.
		http.Redirect(w, r, store.Guard().EntryPath, http.StatusFound)
		return
	}
	s.render(w, http.StatusOK, homePage, homeView{Path: r.URL.Path, Identity: id})
}
