package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notebook/internal/middleware"
)

type RouterDeps struct {
	Auth       *AuthHandler
	Users      *UserHandler
	Notes      *NoteHandler
	Sources    *SourceHandler
	Generation *GenerationHandler
	Chat       *ChatHandler
	LLM        *LLMHandler
	Authn      middleware.Authenticator
	// Limiter guards the endpoints that call an LLM. Nil disables it.
	Limiter middleware.Limiter
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.Authn))
	limited := middleware.RateLimit(deps.Limiter)

	authGroup.GET("/users/me", deps.Users.Me)
	authGroup.PATCH("/users/me", deps.Users.UpdateMe)

	admin := authGroup.Group("/admin", middleware.RequireSuperuser())
	admin.GET("/users", deps.Users.AdminList)
	admin.GET("/users/:id", deps.Users.AdminGet)
	admin.PATCH("/users/:id", deps.Users.AdminUpdate)
	admin.DELETE("/users/:id", deps.Users.AdminDelete)

	authGroup.GET("/notes", deps.Notes.List)
	authGroup.POST("/notes", deps.Notes.Create)
	authGroup.GET("/notes/search/semantic", deps.Notes.SemanticSearch)
	authGroup.GET("/notes/:id", deps.Notes.Get)
	authGroup.PATCH("/notes/:id", deps.Notes.Update)
	authGroup.DELETE("/notes/:id", deps.Notes.Delete)
	authGroup.POST("/notes/:id/archive", deps.Notes.Archive)
	authGroup.POST("/notes/:id/unarchive", deps.Notes.Unarchive)
	authGroup.GET("/notes/:id/similar", deps.Notes.Similar)

	authGroup.GET("/sources", deps.Sources.List)
	authGroup.POST("/sources/text", deps.Sources.CreateText)
	authGroup.POST("/sources/upload", limited, deps.Sources.Upload)
	authGroup.POST("/sources/url", limited, deps.Sources.AddURL)
	authGroup.POST("/sources/youtube", limited, deps.Sources.AddYouTube)
	authGroup.GET("/sources/search/semantic", deps.Sources.SemanticSearch)
	authGroup.POST("/sources/summary", limited, deps.Generation.Summary)
	authGroup.POST("/sources/summary/stream", limited, deps.Generation.SummaryStream)
	authGroup.POST("/sources/audio", limited, deps.Generation.Audio)
	authGroup.POST("/sources/slides", limited, deps.Generation.Slides)
	authGroup.POST("/sources/slides/stream", limited, deps.Generation.SlidesStream)
	authGroup.POST("/sources/podcast", limited, deps.Generation.Podcast)
	authGroup.POST("/sources/podcast/script", limited, deps.Generation.PodcastScript)
	authGroup.POST("/sources/podcast/script/stream", limited, deps.Generation.PodcastScriptStream)
	authGroup.GET("/sources/:id", deps.Sources.Get)
	authGroup.PATCH("/sources/:id", deps.Sources.Update)
	authGroup.DELETE("/sources/:id", deps.Sources.Delete)

	authGroup.POST("/chat", limited, deps.Chat.Ask)
	authGroup.POST("/chat/stream", limited, deps.Chat.Stream)

	authGroup.GET("/llm/status", deps.LLM.Status)
	authGroup.GET("/llm/ollama/status", deps.LLM.OllamaStatus)
	authGroup.GET("/llm/ollama/models", deps.LLM.OllamaModels)
}

// streamingPaths are served without gzip so events and audio are flushed
// as they are written.
var streamingPaths = []string{
	"/chat/stream",
	"/sources/summary/stream",
	"/sources/slides/stream",
	"/sources/podcast/script/stream",
	"/sources/podcast",
	"/sources/audio",
}

// GzipExcludedPaths returns streamingPaths under the api prefix.
func GzipExcludedPaths(prefix string) []string {
	out := make([]string, 0, len(streamingPaths))
	for _, p := range streamingPaths {
		out = append(out, prefix+p)
	}
	return out
}
