package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/comnet/modserve/common/apiutil"
	"github.com/comnet/modserve/internal/server/middleware"
)

// paramsEnvelope is the request body shape for every endpoint.
type paramsEnvelope struct {
	Params json.RawMessage `json:"params"`
}

// dispatch decodes the already-authenticated body, validates the params
// against the endpoint's schema, and invokes the handler. Validation always
// runs before the handler; handler faults surface as 500 without detail.
func (s *ModuleServer) dispatch(ep Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, ok := middleware.RawBody(c)
		if !ok {
			// Route invoked without the signature stage (tests wire
			// stages individually); fall back to the request body.
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				apiutil.WriteError(c, http.StatusBadRequest, "could not read request body")
				return
			}
		}

		var params any
		if ep.Params != nil {
			var envelope paramsEnvelope
			if err := json.Unmarshal(body, &envelope); err != nil {
				apiutil.WriteError(c, http.StatusBadRequest, "body must be a JSON object")
				return
			}
			if envelope.Params == nil {
				apiutil.WriteError(c, http.StatusBadRequest, "missing params field")
				return
			}

			params = ep.Params()
			if err := json.Unmarshal(envelope.Params, params); err != nil {
				apiutil.WriteError(c, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
				return
			}
			if err := s.validator.Validate(params); err != nil {
				apiutil.WriteError(c, http.StatusBadRequest, err.Error())
				return
			}
		}

		result, err := ep.Handler(c.Request.Context(), params)
		if err != nil {
			s.logger.Error("endpoint handler fault",
				zap.String("module", s.module.Name()),
				zap.String("endpoint", ep.Name),
				zap.Error(err))
			apiutil.WriteError(c, http.StatusInternalServerError, "internal server error")
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
