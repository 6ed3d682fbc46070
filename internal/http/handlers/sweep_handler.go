// Internal sweep trigger.
//
// POST /internal/sweep runs one timeout sweep on demand, outside the cron
// cadence. It is mounted behind the X-Internal-Secret guard and exists for
// operations: forcing a pass after an incident, or smoke-testing a deploy.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RunSweep godoc
// @ID          runSweep
// @Summary     Run one timeout sweep now
// @Description Lists overdue active trips and runs the idempotent timeout check on each. Safe to call repeatedly.
// @Tags        Internal
// @Produce     json
//
// @Param       X-Internal-Secret  header  string  true  "Shared internal secret"
//
// @Success     200  {object}  sweep.Result
// @Failure     403  {object}  handlers.ErrorResponse  "Bad secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Sweep could not list trips"
// @Router      /internal/sweep [post]
func (h *Handlers) RunSweep(c *gin.Context) {
	res, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, res)
}
