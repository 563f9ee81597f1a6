package cart

import (
	"context"
	"sync"

	"github.com/discotek/discotek-go/internal/orders"
	"github.com/discotek/discotek-go/pkg/enums"
	pkgerrors "github.com/discotek/discotek-go/pkg/errors"
	"github.com/discotek/discotek-go/pkg/types"
)

// persist reconciles the desired cart against the persisted order:
// header upsert, then matched lines re-PUT, missing lines created and
// orphans deleted. The line batch fans out concurrently and is best
// effort: each sub-operation failure becomes an outcome entry instead
// of aborting its siblings. Matched lines are always re-PUT; no content
// diff is attempted beyond the Matching Rule.
func (s *Service) persist(ctx context.Context) (*types.BatchOutcome, error) {
	s.mu.Lock()
	desired := copyItems(s.items)
	orderID := s.orderID
	total := totalOf(s.items)
	s.mu.Unlock()

	userID := s.sess.UserID()
	ctx = s.logg.WithUserID(ctx, userID)

	header := &orders.Order{
		ID:        orderID,
		UserID:    userID,
		Status:    enums.OrderStatusInProgress,
		Total:     total,
		CreatedAt: s.clock(),
	}
	if orderID == "" {
		created, err := s.orders.Create(ctx, header)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		orderID = created.ID
		s.mu.Lock()
		s.orderID = orderID
		s.mu.Unlock()
	} else {
		if _, err := s.orders.Update(ctx, header); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order "+orderID)
		}
	}
	ctx = s.logg.WithOrderID(ctx, orderID)

	persisted, err := s.orders.ListLines(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lines of order "+orderID)
	}

	type persistedLine struct {
		line    orders.Line
		item    LineItem
		decoded bool
		matched bool
	}
	known := make([]*persistedLine, 0, len(persisted))
	for _, line := range persisted {
		entry := &persistedLine{line: line}
		if item, err := decodeLine(line); err == nil {
			entry.item = item
			entry.decoded = true
		} else {
			// Undecodable payloads cannot match anything; the orphan
			// sweep removes them.
			s.logg.Warn(ctx, "reconcile: undecodable payload on line "+line.ID)
		}
		known = append(known, entry)
	}

	// Matching runs serially so each persisted line is claimed at most
	// once; the resulting writes fan out afterwards.
	type lineWrite struct {
		item   LineItem
		lineID string
	}
	var creates, updates []lineWrite
	for _, item := range desired {
		var match *persistedLine
		for _, entry := range known {
			if entry.decoded && !entry.matched && SameLine(entry.item, item) {
				match = entry
				break
			}
		}
		if match != nil {
			match.matched = true
			updates = append(updates, lineWrite{item: item, lineID: match.line.ID})
		} else {
			creates = append(creates, lineWrite{item: item})
		}
	}
	var orphans []string
	for _, entry := range known {
		if !entry.matched {
			orphans = append(orphans, entry.line.ID)
		}
	}

	outcome := &types.BatchOutcome{}
	var wg sync.WaitGroup
	attached := false
	var attachMu sync.Mutex

	for _, write := range updates {
		wg.Add(1)
		go func(write lineWrite) {
			defer wg.Done()
			ref := "PUT line " + write.lineID
			payload, err := encodePayload(write.item)
			if err != nil {
				outcome.AddFailure(ref, err)
				return
			}
			line := &orders.Line{
				ID:        write.lineID,
				OrderID:   orderID,
				Quantity:  write.item.Quantity,
				UnitPrice: write.item.UnitTotal(),
				Payload:   payload,
			}
			if _, err := s.orders.UpdateLine(ctx, line); err != nil {
				s.logg.Error(ctx, "reconcile: update line failed", err)
				outcome.AddFailure(ref, err)
				return
			}
			s.attachLineID(write.item.ID, write.lineID, &attachMu, &attached)
			outcome.AddSuccess(ref)
		}(write)
	}

	for _, write := range creates {
		wg.Add(1)
		go func(write lineWrite) {
			defer wg.Done()
			ref := "POST line for item " + write.item.ID
			payload, err := encodePayload(write.item)
			if err != nil {
				outcome.AddFailure(ref, err)
				return
			}
			line := &orders.Line{
				OrderID:   orderID,
				Quantity:  write.item.Quantity,
				UnitPrice: write.item.UnitTotal(),
				Payload:   payload,
			}
			created, err := s.orders.CreateLine(ctx, line)
			if err != nil {
				s.logg.Error(ctx, "reconcile: create line failed", err)
				outcome.AddFailure(ref, err)
				return
			}
			s.attachLineID(write.item.ID, created.ID, &attachMu, &attached)
			outcome.AddSuccess(ref)
		}(write)
	}

	for _, lineID := range orphans {
		wg.Add(1)
		go func(lineID string) {
			defer wg.Done()
			ref := "DELETE line " + lineID
			if err := s.orders.DeleteLine(ctx, lineID); err != nil {
				s.logg.Error(ctx, "reconcile: orphan delete failed", err)
				outcome.AddFailure(ref, err)
				return
			}
			outcome.AddSuccess(ref)
		}(lineID)
	}

	wg.Wait()

	if attached {
		// Republish so subscribers observe the server-assigned ids.
		s.publish()
	}
	return outcome, nil
}

// syncHeader re-PUTs the order header with the current total and
// timestamp, without touching lines.
func (s *Service) syncHeader(ctx context.Context) error {
	s.mu.Lock()
	orderID := s.orderID
	total := totalOf(s.items)
	s.mu.Unlock()
	if orderID == "" {
		return nil
	}
	header := &orders.Order{
		ID:        orderID,
		UserID:    s.sess.UserID(),
		Status:    enums.OrderStatusInProgress,
		Total:     total,
		CreatedAt: s.clock(),
	}
	if _, err := s.orders.Update(ctx, header); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order "+orderID)
	}
	return nil
}

func (s *Service) attachLineID(itemID, lineID string, mu *sync.Mutex, attached *bool) {
	s.mu.Lock()
	for idx := range s.items {
		if s.items[idx].ID == itemID {
			s.items[idx].LineID = lineID
			break
		}
	}
	s.mu.Unlock()
	mu.Lock()
	*attached = true
	mu.Unlock()
}
