// Package worker runs the asynq background task server and its handlers.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/YusufStar/code-craft/internal/repository"
	"github.com/YusufStar/code-craft/internal/tasks"
)

// WorkerServer wraps the asynq server lifecycle.
type WorkerServer struct {
	server    *asynq.Server
	log       *logrus.Entry
	roomRepo  repository.RoomRepository
	stateRepo repository.StateRepository
	retention time.Duration
}

// NewWorkerServer creates a WorkerServer bound to the shared Redis instance.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, roomRepo repository.RoomRepository, stateRepo repository.StateRepository, retention time.Duration) *WorkerServer {
	if roomRepo == nil || stateRepo == nil {
		panic("all dependencies must be non-nil for WorkerServer")
	}
	logEntry := logrus.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:    server,
		log:       logEntry,
		roomRepo:  roomRepo,
		stateRepo: stateRepo,
		retention: retention,
	}
}

// Start runs the worker server. It blocks, so call it from its own goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeEditorFlush, NewEditorFlushHandler(ws.roomRepo, ws.stateRepo))
	mux.Handle(tasks.TypeRoomSweep, NewRoomSweepHandler(ws.roomRepo, ws.stateRepo, ws.retention))

	ws.log.Info("Worker server starting")
	if err := ws.server.Run(mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		ws.log.Fatalf("Could not run worker server: %v", err)
	}
	ws.log.Info("Worker server stopped")
}

// Shutdown stops the worker server gracefully.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server")
	ws.server.Shutdown()
}
