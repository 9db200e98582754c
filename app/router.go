package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reversync/reversync/base/appbase"
	"github.com/reversync/reversync/base/metrics"
	"github.com/reversync/reversync/base/utils"
	"github.com/reversync/reversync/reversynclib/protocol"
	timeout "github.com/vearne/gin-timeout"
)

type Router struct {
	*appbase.Router
	config     *Config
	dispatcher *protocol.Dispatcher
}

func NewRouter(config *Config, dispatcher *protocol.Dispatcher) *Router {
	authTokens := strings.Split(config.AuthTokens, ",")
	tokenSecrets := strings.Split(config.TokenSecrets, ",")
	base := appbase.NewRouterBase(authTokens, tokenSecrets, []string{
		"/health",
		"/metrics",
	})

	router := &Router{
		Router:     base,
		config:     config,
		dispatcher: dispatcher,
	}
	engine := router.Engine()
	rpc := engine.Group("")
	rpc.Use(timeout.Timeout(timeout.WithTimeout(time.Duration(config.RPCTimeoutMs) * time.Millisecond)))
	rpc.POST("/rpc/:token", router.RPCHandler)

	engine.GET("/health", router.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func (r *Router) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "pass"})
}

// RPCHandler serves one JSON-RPC exchange. Whatever happens inside, the reply
// is HTTP 200 with a well-formed JSON-RPC body: the orchestrator treats
// anything else as an undiagnosable failure.
func (r *Router) RPCHandler(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		r.Errorf("error reading request body: %v", err)
		r.respond(c, "", protocol.ErrorResponse(nil, protocol.ParseErrorCode, "error reading request body"))
		return
	}
	request, decodeErr := protocol.DecodeRequest(body)
	if decodeErr != nil {
		r.Debugf("rejected request body (%s): %s", decodeErr.Message, utils.ShortenStringWithEllipsis(string(body), 512))
		r.respond(c, "", protocol.ErrorResponse(nil, decodeErr.Code, decodeErr.Message))
		return
	}
	response := r.dispatcher.DispatchRequest(c.Request.Context(), request)
	r.respond(c, request.Method, response)
}

func (r *Router) respond(c *gin.Context, method string, response *protocol.Response) {
	payload, err := protocol.EncodeResponse(response)
	if err != nil {
		// last resort: hand-built envelope, still valid JSON-RPC
		r.SystemErrorf("error encoding response: %v", err)
		payload = []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"error encoding response"}}`)
	}
	if response.Err != nil {
		metrics.RPCHandlerRequests(method, "error", strconv.Itoa(response.Err.Code)).Inc()
	} else {
		metrics.RPCHandlerRequests(method, "success", "").Inc()
	}
	c.Data(http.StatusOK, "application/json", payload)
}
