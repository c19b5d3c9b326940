// Command intent-viewer serves an intent result document over HTTP for
// dashboards. The document is re-read on every request, so a viewer pointed
// at a live analysis run always shows the latest persisted state.
package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clariondata/intentline/intent"
)

type Config struct {
	ResultPath string
	Addr       string
	Verbose    bool
}

func (c Config) Validate() error {
	if c.ResultPath == "" {
		return errors.New("missing -results")
	}
	if c.Addr == "" {
		return errors.New("missing -addr")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		ResultPath: "intent_result.json",
		Addr:       ":8080",
	}
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.ResultPath, "results", cfg.ResultPath, "Path to the JSON result document to serve")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address (host:port)")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose (debug) logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer logger.Sync()

	store := intent.NewStore(cfg.ResultPath)
	router := newRouter(store)

	logger.Info("viewer listening",
		zap.String("addr", cfg.Addr),
		zap.String("results", cfg.ResultPath),
	)
	if err := router.Run(cfg.Addr); err != nil {
		logger.Error("viewer stopped", zap.Error(err))
		os.Exit(1)
	}
}

func newRouter(store *intent.Store) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	api := router.Group("/api")
	api.GET("/results", handleResults(store))
	api.GET("/users", handleUsers(store))
	api.GET("/users/:id", handleUser(store))
	api.GET("/users/:id/audit", handleUserAudit(store))
	api.GET("/stats", handleStats(store))
	return router
}

func loadDoc(c *gin.Context, store *intent.Store) (intent.ResultDocument, bool) {
	doc, err := store.Load()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return doc, true
}

func handleResults(store *intent.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := loadDoc(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

type userSummary struct {
	UserID               string `json:"user_uuid"`
	TotalSessions        int    `json:"total_sessions"`
	TotalActionsOriginal int    `json:"total_actions_original"`
	TotalActionsValid    int    `json:"total_actions_valid"`
	TotalActionsAnalyzed int    `json:"total_actions_analyzed"`
}

func handleUsers(store *intent.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := loadDoc(c, store)
		if !ok {
			return
		}
		summaries := make([]userSummary, 0, len(doc))
		for _, id := range intent.SortedUserIDs(doc) {
			user := doc[id]
			summaries = append(summaries, userSummary{
				UserID:               id,
				TotalSessions:        user.TotalSessions,
				TotalActionsOriginal: user.TotalActionsOriginal,
				TotalActionsValid:    user.TotalActionsValid,
				TotalActionsAnalyzed: user.TotalActionsAnalyzed,
			})
		}
		c.JSON(http.StatusOK, gin.H{"users": summaries, "total": len(summaries)})
	}
}

func handleUser(store *intent.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := loadDoc(c, store)
		if !ok {
			return
		}
		user, found := doc[c.Param("id")]
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

func handleUserAudit(store *intent.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := loadDoc(c, store)
		if !ok {
			return
		}
		audit, found := intent.AuditUser(doc, c.Param("id"))
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusOK, audit)
	}
}

func handleStats(store *intent.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, ok := loadDoc(c, store)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, intent.ComputeStats(doc))
	}
}
