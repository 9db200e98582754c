package appbase

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/penglongli/gin-metrics/ginmetrics"
	"github.com/reversync/reversync/base/utils"
)

// Router wraps a gin engine with token auth. The orchestrator carries the
// auth token as a URL segment, so auth is checked against a route param
// rather than a header.
type Router struct {
	Service
	engine       *gin.Engine
	authTokens   []string
	tokenSecrets []string
	noAuthPaths  []string
}

func NewRouterBase(authTokens, tokenSecrets, noAuthPaths []string) *Router {
	base := NewServiceBase("router")
	authTokens = utils.ArrayFilter(authTokens, func(token string) bool { return token != "" })
	if len(authTokens) == 0 {
		base.Warnf("No auth tokens provided. All requests will be allowed")
	}

	router := &Router{
		Service:      base,
		authTokens:   authTokens,
		tokenSecrets: tokenSecrets,
		noAuthPaths:  noAuthPaths,
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	m := ginmetrics.GetMonitor()
	m.SetSlowTime(1)
	// used to p95, p99
	m.SetDuration([]float64{0.01, 0.05, 0.1, 0.3, 1.0, 2.0, 3.0, 10})
	m.UseWithoutExposingEndpoint(engine)
	engine.Use(gin.Recovery())
	engine.Use(router.authMiddleware)
	router.engine = engine
	return router
}

// Engine returns gin router
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) authMiddleware(c *gin.Context) {
	if len(r.authTokens) == 0 {
		return
	}
	if utils.ArrayContains(r.noAuthPaths, c.FullPath()) {
		//no auth for this path
		return
	}
	token := c.Param("token")
	if token == "" {
		r.ResponseError(c, http.StatusUnauthorized, "auth token URL segment is required", false, nil, "")
		c.Abort()
		return
	}
	authorized := utils.ArrayContainsF(r.authTokens, func(authToken string) bool {
		if !strings.Contains(authToken, ".") {
			return token == authToken
		}
		hashedToken := strings.SplitN(authToken, ".", 2)
		salt := hashedToken[0]
		hash := hashedToken[1]
		return utils.ArrayContainsF(r.tokenSecrets, func(secret string) bool {
			return utils.HashToken(token, salt, secret) == hash
		})
	})
	if !authorized {
		r.ResponseError(c, http.StatusUnauthorized, "invalid token", false, nil, "")
		c.Abort()
	}
}

type RouterError struct {
	Error       error
	PublicError error
	ErrorType   string
}

func (r *Router) ResponseError(c *gin.Context, code int, errorType string, maskError bool, err error, logFormat string, logArgs ...any) RouterError {
	routerError := RouterError{Error: err, ErrorType: errorType}
	if err != nil {
		if maskError {
			errorID := uuid.NewString()
			err = fmt.Errorf("error# %s: %s: %w", errorID, errorType, err)
			routerError.PublicError = fmt.Errorf("error# %s: %s", errorID, errorType)
		} else {
			err = fmt.Errorf("%s: %w", errorType, err)
			routerError.PublicError = err
		}
	} else {
		err = fmt.Errorf("%s", errorType)
		routerError.PublicError = err
	}
	if logFormat == "" {
		logFormat = "%v"
	} else {
		logFormat = logFormat + " %v"
	}
	logArgs = append(logArgs, err)
	r.Errorf(logFormat, logArgs...)
	c.JSON(code, gin.H{"error": routerError.PublicError.Error()})
	return routerError
}
