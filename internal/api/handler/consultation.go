package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MyRequests повертає запити поточного користувача (pending та за останню добу)
func (h *Handler) MyRequests(c *gin.Context) {
	requests, err := h.Broker.ListForRequester(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Your requests fetched successfully", gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

func (h *Handler) ConsultationStatus(c *gin.Context) {
	status, err := h.Broker.Status(c.Request.Context(), currentUser(c), c.Param("providerId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Consultation status fetched successfully", status)
}

func (h *Handler) CancelRequest(c *gin.Context) {
	out, err := h.Broker.Cancel(c.Request.Context(), currentUser(c), c.Param("requestId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Request cancelled successfully", out.Request)
}

func (h *Handler) PendingRequests(c *gin.Context) {
	requests, err := h.Broker.ListPending(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Pending requests fetched successfully", gin.H{
		"requests": requests,
		"count":    len(requests),
	})
}

// RequestHistory accepts ?status=&page=&limit=.
func (h *Handler) RequestHistory(c *gin.Context) {
	page, err := h.Broker.History(c.Request.Context(), currentUser(c), c.Query("status"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Request history fetched successfully", page)
}

func (h *Handler) ConsultationStats(c *gin.Context) {
	stats, err := h.Broker.Stats(c.Request.Context(), currentUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "Consultation stats fetched successfully", stats)
}

// ExpireOld runs one sweep on demand.
func (h *Handler) ExpireOld(c *gin.Context) {
	n, err := h.Broker.Sweep(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, fmt.Sprintf("%d expired request(s) updated", n), gin.H{"expiredCount": n})
}
