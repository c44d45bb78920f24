package service

import (
	"fmt"
	"strconv"
	"strings"

	"tycho/domain/engine"
	"tycho/domain/orderbook"
)

// Journal payloads are compact pipe-separated fields; they only need to
// be parseable by this process, never by external consumers.

// id|side|kind|price|qty
func encodeSubmit(req engine.Submit) []byte {
	return []byte(fmt.Sprintf("%d|%d|%d|%d|%d",
		req.OrderID, req.Side, req.Kind, req.Price, req.Qty))
}

func parseSubmit(data []byte) (engine.Submit, error) {
	parts := strings.Split(string(data), "|")
	if len(parts) != 5 {
		return engine.Submit{}, fmt.Errorf("malformed submit payload: %q", data)
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return engine.Submit{}, err
	}
	side, err := strconv.Atoi(parts[1])
	if err != nil {
		return engine.Submit{}, err
	}
	kind, err := strconv.Atoi(parts[2])
	if err != nil {
		return engine.Submit{}, err
	}
	price, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return engine.Submit{}, err
	}
	qty, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return engine.Submit{}, err
	}
	return engine.Submit{
		OrderID: id,
		Side:    orderbook.Side(side),
		Kind:    orderbook.Kind(kind),
		Price:   price,
		Qty:     qty,
	}, nil
}

// id
func encodeCancel(id uint64) []byte {
	return []byte(strconv.FormatUint(id, 10))
}

func parseCancel(data []byte) (uint64, error) {
	return strconv.ParseUint(string(data), 10, 64)
}

// id|hasPrice|price|qty
func encodeModify(req engine.Modify) []byte {
	hasPrice, price := 0, int64(0)
	if req.NewPrice != nil {
		hasPrice, price = 1, *req.NewPrice
	}
	return []byte(fmt.Sprintf("%d|%d|%d|%d", req.OrderID, hasPrice, price, req.NewQty))
}

func parseModify(data []byte) (engine.Modify, error) {
	parts := strings.Split(string(data), "|")
	if len(parts) != 4 {
		return engine.Modify{}, fmt.Errorf("malformed modify payload: %q", data)
	}
	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return engine.Modify{}, err
	}
	hasPrice, err := strconv.Atoi(parts[1])
	if err != nil {
		return engine.Modify{}, err
	}
	price, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return engine.Modify{}, err
	}
	qty, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return engine.Modify{}, err
	}
	req := engine.Modify{OrderID: id, NewQty: qty}
	if hasPrice == 1 {
		req.NewPrice = &price
	}
	return req, nil
}
