package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tycho/domain/engine"
	"tycho/domain/orderbook"
)

type submitRequest struct {
	OrderID uint64 `json:"order_id" binding:"required"`
	Side    string `json:"side" binding:"required,oneof=bid ask buy sell"`
	Kind    string `json:"kind" binding:"omitempty,oneof=limit market"`
	Price   int64  `json:"price"`
	Qty     int64  `json:"qty" binding:"required,gt=0"`
}

type modifyRequest struct {
	NewPrice *int64 `json:"new_price"`
	NewQty   int64  `json:"new_qty" binding:"required,gt=0"`
}

type tradeResponse struct {
	ID         uint64 `json:"id"`
	RestingID  uint64 `json:"resting_id"`
	IncomingID uint64 `json:"incoming_id"`
	Price      int64  `json:"price"`
	Qty        int64  `json:"qty"`
}

type resultResponse struct {
	OrderID   uint64          `json:"order_id"`
	Seq       uint64          `json:"seq"`
	Outcome   string          `json:"outcome"`
	Remaining int64           `json:"remaining"`
	Trades    []tradeResponse `json:"trades"`
}

func (s *Server) submitOrder(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	side := orderbook.Ask
	if req.Side == "bid" || req.Side == "buy" {
		side = orderbook.Bid
	}
	kind := orderbook.Limit
	if req.Kind == "market" {
		kind = orderbook.Market
	}

	res, err := s.svc.Submit(engine.Submit{
		OrderID: req.OrderID,
		Side:    side,
		Kind:    kind,
		Price:   req.Price,
		Qty:     req.Qty,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResult(res))
}

func (s *Server) cancelOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	if err := s.svc.Cancel(id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": id, "status": "cancelled"})
}

func (s *Server) modifyOrder(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.svc.Modify(engine.Modify{
		OrderID:  id,
		NewPrice: req.NewPrice,
		NewQty:   req.NewQty,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResult(res))
}

func (s *Server) topOfBook(c *gin.Context) {
	bid, ask, haveBid, haveAsk := s.svc.TopOfBook()

	resp := gin.H{}
	if haveBid {
		resp["bid"] = bid
	}
	if haveAsk {
		resp["ask"] = ask
	}
	c.JSON(http.StatusOK, resp)
}

// maxDepthLevels bounds one depth response regardless of the query.
const maxDepthLevels = 500

func (s *Server) depth(c *gin.Context) {
	levels := 10
	if v := c.Query("levels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "levels must be a positive integer"})
			return
		}
		levels = min(n, maxDepthLevels)
	}

	bids, asks := s.svc.Depth(levels)
	c.JSON(http.StatusOK, gin.H{"bids": bids, "asks": asks})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrUnknownOrder):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orderbook.ErrDuplicateOrder):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrCapacityExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func toResult(res engine.Result) resultResponse {
	trades := make([]tradeResponse, 0, len(res.Trades))
	for _, t := range res.Trades {
		trades = append(trades, tradeResponse{
			ID:         t.ID,
			RestingID:  t.RestingID,
			IncomingID: t.IncomingID,
			Price:      t.Price,
			Qty:        t.Qty,
		})
	}
	return resultResponse{
		OrderID:   res.OrderID,
		Seq:       res.Seq,
		Outcome:   res.Outcome.String(),
		Remaining: res.Remaining,
		Trades:    trades,
	}
}
