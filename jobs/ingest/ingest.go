// Package ingest consumes order requests from Kafka and applies them
// to the order service. Malformed or rejected requests are logged and
// skipped; the consumer never stops on a bad message.
package ingest

import (
	"context"
	"encoding/json"
	"errors"

	"tycho/domain/engine"
	"tycho/domain/orderbook"
	"tycho/infra/kafka"
	"tycho/pkg/logger"
)

// Request is the wire format accepted on the orders topic.
type Request struct {
	Type     string `json:"type"` // submit | cancel | modify
	OrderID  uint64 `json:"order_id"`
	Side     string `json:"side,omitempty"` // bid | ask
	Kind     string `json:"kind,omitempty"` // limit | market
	Price    int64  `json:"price,omitempty"`
	Qty      int64  `json:"qty,omitempty"`
	NewPrice *int64 `json:"new_price,omitempty"`
	NewQty   int64  `json:"new_qty,omitempty"`
}

// Service is the subset of the order service the consumer drives.
type Service interface {
	Submit(req engine.Submit) (engine.Result, error)
	Cancel(id uint64) error
	Modify(req engine.Modify) (engine.Result, error)
}

type Consumer struct {
	reader *kafka.Reader
	svc    Service
	log    *logger.Logger
}

func New(brokers []string, topic, groupID string, svc Service, log *logger.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(brokers, topic, groupID),
		svc:    svc,
		log:    log,
	}
}

func (c *Consumer) Start(ctx context.Context) {
	c.log.Info("order ingest started")

	go func() {
		for {
			msg, err := c.reader.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warn("fetch failed", logger.NewField("error", err.Error()))
				continue
			}
			c.handle(msg.Value)
		}
	}()
}

func (c *Consumer) handle(raw []byte) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		c.log.Warn("malformed order request", logger.NewField("error", err.Error()))
		return
	}

	var err error
	switch req.Type {
	case "submit":
		err = c.submit(req)
	case "cancel":
		err = c.svc.Cancel(req.OrderID)
	case "modify":
		_, err = c.svc.Modify(engine.Modify{
			OrderID:  req.OrderID,
			NewPrice: req.NewPrice,
			NewQty:   req.NewQty,
		})
	default:
		c.log.Warn("unknown request type", logger.NewField("type", req.Type))
		return
	}
	if err != nil {
		c.log.Warn("request rejected",
			logger.NewField("type", req.Type),
			logger.NewField("order_id", req.OrderID),
			logger.NewField("error", err.Error()),
		)
	}
}

func (c *Consumer) submit(req Request) error {
	side, err := parseSide(req.Side)
	if err != nil {
		return err
	}
	kind, err := parseKind(req.Kind)
	if err != nil {
		return err
	}
	_, err = c.svc.Submit(engine.Submit{
		OrderID: req.OrderID,
		Side:    side,
		Kind:    kind,
		Price:   req.Price,
		Qty:     req.Qty,
	})
	return err
}

func parseSide(s string) (orderbook.Side, error) {
	switch s {
	case "bid", "buy":
		return orderbook.Bid, nil
	case "ask", "sell":
		return orderbook.Ask, nil
	default:
		return 0, errors.New("unknown side: " + s)
	}
}

func parseKind(s string) (orderbook.Kind, error) {
	switch s {
	case "limit", "":
		return orderbook.Limit, nil
	case "market":
		return orderbook.Market, nil
	default:
		return 0, errors.New("unknown kind: " + s)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
