// internal/app/system/txn/txn.go
//
// Package txn runs a group of writes as one unit of work.
//
// On a replica set or sharded cluster the writes run inside a MongoDB
// multi-document transaction. On a standalone server, where transactions are
// unavailable, the writes run directly and every step registered with Undo is
// replayed in reverse order if the unit fails.
package txn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// undoTimeout bounds the compensating writes. They run on a detached context
// so a cancelled request still gets cleaned up.
const undoTimeout = 10 * time.Second

// Func is one unit of work. ctx joins the transaction when one is active.
type Func func(ctx context.Context, undo *Undo) error

// Undo collects compensating steps for the non-transactional path.
// Inside a real transaction the steps are recorded but never run.
type Undo struct {
	mu    sync.Mutex
	steps []func(ctx context.Context) error
}

// Add registers a compensating step.
func (u *Undo) Add(step func(ctx context.Context) error) {
	if u == nil || step == nil {
		return
	}
	u.mu.Lock()
	u.steps = append(u.steps, step)
	u.mu.Unlock()
}

// Delete registers removal of the document with the given _id.
func (u *Undo) Delete(c *mongo.Collection, id any) {
	u.Add(func(ctx context.Context) error {
		_, err := c.DeleteOne(ctx, bson.M{"_id": id})
		return err
	})
}

// Len reports how many steps are registered.
func (u *Undo) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.steps)
}

// rollback runs the steps newest first. It keeps going after a failed step
// and returns the joined errors.
func (u *Undo) rollback(ctx context.Context) error {
	u.mu.Lock()
	steps := u.steps
	u.steps = nil
	u.mu.Unlock()

	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		if err := steps[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run executes fn atomically against db's client.
//
// A transaction is attempted first. If the server reports that transactions
// are not supported, fn is re-run on the compensating path. Any error
// returned by fn is returned unchanged so callers can inspect it.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	if log == nil {
		log = zap.NewNop()
	}

	err := runTransaction(ctx, db.Client(), fn)
	if err == nil || !IsNotSupported(err) {
		return err
	}

	log.Debug("transactions unavailable; using compensating writes", zap.Error(err))
	return RunCompensating(ctx, log, fn)
}

func runTransaction(ctx context.Context, client *mongo.Client, fn Func) error {
	sess, err := client.StartSession()
	if err != nil {
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, &Undo{})
	})
	return err
}

// RunCompensating executes fn without a transaction and replays its Undo
// steps if it fails.
func RunCompensating(ctx context.Context, log *zap.Logger, fn Func) error {
	undo := &Undo{}
	err := fn(ctx, undo)
	if err == nil {
		return nil
	}

	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), undoTimeout)
	defer cancel()
	if rbErr := undo.rollback(rbCtx); rbErr != nil && log != nil {
		log.Error("compensating rollback incomplete", zap.Error(rbErr), zap.NamedError("cause", err))
	}
	return err
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions (standalone server, unsupported session).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, // IllegalOperation
			51,  // NotAReplicaSet (older servers)
			263: // OperationNotSupportedInTransaction
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "transaction") &&
		(strings.Contains(msg, "replica set") || strings.Contains(msg, "session")):
		return true
	case strings.Contains(msg, "session") && strings.Contains(msg, "not supported"):
		return true
	case strings.Contains(msg, "illegal operation"):
		return true
	}
	return false
}
