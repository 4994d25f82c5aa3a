package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"chatwidget-backend/internal/models"
	"chatwidget-backend/internal/services"
)

// ErrStopped is returned by Enqueue once Stop has been called.
var ErrStopped = errors.New("worker pool stopped")

// Completer finishes a turn; *services.ChatService satisfies it.
type Completer interface {
	Complete(ctx context.Context, turn *services.Turn) models.Message
}

// Pool runs accepted turns on a fixed number of goroutines.
type Pool struct {
	chat        Completer
	queue       chan *services.Turn
	workerCount int

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(chat Completer, workerCount, queueSize int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < workerCount {
		queueSize = workerCount
	}
	return &Pool{
		chat:        chat,
		queue:       make(chan *services.Turn, queueSize),
		workerCount: workerCount,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Info().Int("workers", p.workerCount).Msg("started worker goroutines")
}

// Stop refuses new turns, lets queued ones finish and waits for the workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// Enqueue blocks while the queue is full.
func (p *Pool) Enqueue(turn *services.Turn) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	p.queue <- turn
	return nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for turn := range p.queue {
		sessionID := turn.Session.ID.String()
		log.Debug().Int("worker", id).Str("session_id", sessionID).Msg("processing turn")

		// Turns are never cancelled from the view; they run to completion.
		reply := p.chat.Complete(context.Background(), turn)

		log.Debug().Int("worker", id).Str("session_id", sessionID).Int("reply_len", len(reply.Content)).Msg("turn completed")
	}

	log.Debug().Int("worker", id).Msg("worker shutting down")
}
