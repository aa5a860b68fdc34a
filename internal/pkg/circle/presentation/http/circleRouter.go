package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cacheport "github.com/Behappytocode/circle/internal/infrastructure/cache/port"
	"github.com/Behappytocode/circle/internal/infrastructure/feed"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/roster"
	"github.com/Behappytocode/circle/internal/pkg/circle/application/upload"
	"github.com/Behappytocode/circle/internal/pkg/circle/presentation/controller"
	repository "github.com/Behappytocode/circle/internal/pkg/circle/persistence/repository/port"
)

// Deps carries everything the HTTP layer binds controllers to.
type Deps struct {
	Store    repository.DataStore
	Auth     repository.Auth
	Feed     feed.Source
	Cache    cacheport.Cache
	Uploader *upload.Uploader
	Roster   *roster.Roster
	Log      *zap.Logger
}

// RegisterRoutes registers all endpoints under the given router group.
// It constructs per-endpoint controllers and binds them directly to
// routes.
func RegisterRoutes(g *gin.RouterGroup, d Deps) {
	signUpCtl := controller.NewSignUpController(d.Auth)
	signInCtl := controller.NewSignInController(d.Auth)
	signOutCtl := controller.NewSignOutController(d.Auth)
	listThreadsCtl := controller.NewListThreadsController(d.Store)
	getMsgCtl := controller.NewGetMessagesController(d.Store)
	sendMsgCtl := controller.NewSendMessageController(d.Store)
	uploadCtl := controller.NewUploadController(d.Uploader)
	socketCtl := controller.NewChatSocketController(d.Store, d.Feed, d.Cache, d.Log)
	listAccountsCtl := controller.NewListAccountsController(d.Roster)
	setStatusCtl := controller.NewSetStatusController(d.Roster)
	purgeCtl := controller.NewPurgeAccountController(d.Roster)

	session := controller.RequireSession(d.Auth)
	approved := controller.RequireApproved(d.Store)
	admin := controller.RequireAdmin()

	// POST /api/v1/auth/signup -> register a pending account
	g.POST("/auth/signup", signUpCtl.Handle())

	// POST /api/v1/auth/signin -> mint a session token
	g.POST("/auth/signin", signInCtl.Handle())

	// POST /api/v1/auth/signout -> invalidate the session token
	g.POST("/auth/signout", signOutCtl.Handle())

	// GET /api/v1/threads -> list addressable threads
	g.GET("/threads", session, approved, listThreadsCtl.Handle())

	// GET /api/v1/threads/:threadId/messages -> fetch a thread's history
	g.GET("/threads/:threadId/messages", session, approved, getMsgCtl.Handle())

	// POST /api/v1/threads/:threadId/messages -> send into a thread
	g.POST("/threads/:threadId/messages", session, approved, sendMsgCtl.Handle())

	// POST /api/v1/uploads -> store an attachment, returns its URL
	g.POST("/uploads", session, approved, uploadCtl.Handle())

	// GET /api/v1/ws -> websocket endpoint for the live session.
	// Status gating happens inside the socket so pending accounts can
	// hold a connection and re-check their status.
	g.GET("/ws", session, socketCtl.Handle())

	// Admin roster endpoints.
	g.GET("/admin/accounts", session, approved, admin, listAccountsCtl.Handle())
	g.POST("/admin/accounts/:accountId/status", session, approved, admin, setStatusCtl.Handle())
	g.POST("/admin/accounts/:accountId/purge", session, approved, admin, purgeCtl.Handle())
}
