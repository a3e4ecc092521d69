package services

import (
	"context"
	"log"
	"sync"
	"time"

	"alfredoptarigan/job-orchestrator/internal/models"
)

// InboundJob is one fetched message waiting for the inbound pipeline.
type InboundJob struct {
	Tenant  *models.Tenant
	Message InboundMessage
}

type Worker interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(job InboundJob) bool
}

type worker struct {
	inbound     InboundService
	jobQueue    chan InboundJob
	concurrency int
	timeout     time.Duration
	wg          sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once
}

func NewWorker(inbound InboundService, concurrency int, timeout time.Duration) Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &worker{
		inbound:     inbound,
		jobQueue:    make(chan InboundJob, 100),
		concurrency: concurrency,
		timeout:     timeout,
		stopChan:    make(chan struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	log.Printf("🚀 Starting inbound worker with %d concurrent workers\n", w.concurrency)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	log.Println("✅ Inbound worker started successfully")
}

// Stop implements Worker.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		log.Println("🛑 Stopping inbound worker...")
		close(w.stopChan)
		w.wg.Wait()
		log.Println("✅ Inbound worker stopped")
	})
}

// Enqueue implements Worker. It reports false once the worker is stopped.
func (w *worker) Enqueue(job InboundJob) bool {
	select {
	case <-w.stopChan:
		log.Printf("⚠️  Worker stopped, cannot enqueue message %s\n", job.Message.MessageID)
		return false
	default:
	}

	select {
	case w.jobQueue <- job:
		log.Printf("📥 Message %s enqueued for %s\n", job.Message.MessageID, job.Tenant.ID)
		return true
	case <-w.stopChan:
		log.Printf("⚠️  Worker stopped, cannot enqueue message %s\n", job.Message.MessageID)
		return false
	}
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			log.Printf("👷 Worker #%d stopped\n", workerID)
			return
		case job := <-w.jobQueue:
			w.process(ctx, workerID, job)
		}
	}
}

func (w *worker) process(ctx context.Context, workerID int, job InboundJob) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	exec := NewExecution(job.Tenant)
	msg := job.Message
	log.Printf("👷 Worker #%d processing message %s (execution %s)\n", workerID, msg.MessageID, exec.ID)

	outcome, err := w.inbound.Process(ctx, exec, &msg)
	if err != nil {
		log.Printf("❌ Worker #%d failed to process message %s: %v\n", workerID, msg.MessageID, err)
		return
	}
	log.Printf("✅ Worker #%d finished message %s: %s\n", workerID, msg.MessageID, outcome.Status())
}
