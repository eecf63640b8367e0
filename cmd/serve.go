package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairscan/leadmerge-cli/internal/model"
	"github.com/fairscan/leadmerge-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the merge HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}
		filter := store.RunFilter{
			Status: model.RunStatus(r.URL.Query().Get("status")),
			Limit:  limit,
		}
		runs, err := st.ListRuns(r.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/quota", func(w http.ResponseWriter, r *http.Request) {
		usage, err := st.GetQuota(r.Context(), store.Day(time.Now()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, usage)
	})

	r.Post("/api/merge", func(w http.ResponseWriter, r *http.Request) {
		handleMerge(st, w, r)
	})

	return r
}

// handleMerge runs a merge on multipart-uploaded inputs: a required
// "scans" JSON part and an optional "sheet" xlsx part. The response body
// is the merged workbook; the run ID travels in the X-Run-Id header and
// the workbook stays on disk at the run's recorded output path.
func handleMerge(st store.Store, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "parse multipart form"))
		return
	}

	dir, err := os.MkdirTemp("", "leadmerge-*")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	scanPath, err := saveUpload(r, "scans", filepath.Join(dir, "scans.json"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sheetPath := ""
	if _, _, err := r.FormFile("sheet"); err == nil {
		sheetPath, err = saveUpload(r, "sheet", filepath.Join(dir, "sheet.xlsx"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	// The output lives outside the uploads dir so it survives this
	// request and the recorded output path stays valid.
	out, err := os.CreateTemp("", "leadmerge-merged-*.xlsx")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	outPath := out.Name()
	_ = out.Close()

	run, _, err := runMerge(r.Context(), st, scanPath, sheetPath, outPath)
	if err != nil {
		_ = os.Remove(outPath)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	f, err := os.Open(outPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer f.Close() //nolint:errcheck

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="merged.xlsx"`)
	w.Header().Set("X-Run-Id", run.ID)
	if _, err := io.Copy(w, f); err != nil {
		zap.L().Error("stream merged workbook", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func saveUpload(r *http.Request, field, dst string) (string, error) {
	src, _, err := r.FormFile(field)
	if err != nil {
		return "", eris.Wrapf(err, "missing %q upload", field)
	}
	defer src.Close() //nolint:errcheck

	f, err := os.Create(dst)
	if err != nil {
		return "", eris.Wrapf(err, "create %s", dst)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, src); err != nil {
		return "", eris.Wrapf(err, "save %q upload", field)
	}
	return dst, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
