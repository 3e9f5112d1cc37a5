package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/slambench/runner/internal/archive"
	"github.com/slambench/runner/internal/mappers"
	"github.com/slambench/runner/internal/repository/dto"
	"github.com/slambench/runner/internal/repository/models"
	"github.com/slambench/runner/internal/supervisor"
)

const (
	RequestQueue  = "runs-req"
	ResponseQueue = "runs-resp"
)

type RabbitMqHandlerConfig struct {
	Login    string
	Password string
	Host     string
	Port     int
}

type RabbitMQHandler struct {
	cfg          RabbitMqHandlerConfig
	sup          *supervisor.Supervisor
	archiver     *archive.Archiver
	conn         *amqp.Connection
	consumerChan *amqp.Channel
	producerChan *amqp.Channel
	jobs         chan models.RunJob
	quit         chan struct{}
	workerOnce   sync.Once
	closeOnce    sync.Once
	listenerWg   sync.WaitGroup
	wg           sync.WaitGroup
}

func NewRabbitMQHandler(cfg RabbitMqHandlerConfig, sup *supervisor.Supervisor, archiver *archive.Archiver) (*RabbitMQHandler, error) {
	return &RabbitMQHandler{
		cfg:      cfg,
		sup:      sup,
		archiver: archiver,
		jobs:     make(chan models.RunJob),
		quit:     make(chan struct{}),
	}, nil
}

func (r *RabbitMQHandler) Start() error {
	if err := r.setup(); err != nil {
		return err
	}
	r.startWorker()
	return nil
}

// setup establishes the connection and both channels. Reconnection reuses
// it without touching the worker.
func (r *RabbitMQHandler) setup() error {
	if err := r.connect(); err != nil {
		return err
	}
	if err := r.startConsumer(); err != nil {
		return errors.Wrap(err, "failed to start consumer")
	}
	if err := r.startProducer(); err != nil {
		return errors.Wrap(err, "failed to start producer")
	}
	return nil
}

// startWorker spawns the single worker for the lifetime of the handler.
// The supervisor runs one job at a time by contract, so reconnects must
// never add drainers.
func (r *RabbitMQHandler) startWorker() {
	r.workerOnce.Do(func() {
		r.wg.Add(1)
		go r.worker()
	})
}

// Close shuts the delivery path down before the jobs channel so the
// listener can never hand off into a closed channel. The worker drains
// whatever was already accepted.
func (r *RabbitMQHandler) Close() {
	r.closeOnce.Do(func() {
		close(r.quit)
		if r.conn != nil {
			r.conn.Close()
		}
		r.listenerWg.Wait()
		close(r.jobs)
		r.wg.Wait()
	})
}

func (r *RabbitMQHandler) closing() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

func (r *RabbitMQHandler) startConsumer() error {
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	queue, err := channel.QueueDeclare(RequestQueue, false, false, false, false, nil)
	if err != nil {
		return err
	}
	del, err := channel.Consume(queue.Name, "", true, false, false, false, nil)
	if err != nil {
		return err
	}

	r.consumerChan = channel
	r.listenerWg.Add(1)
	go r.listener(del)
	return nil
}

func (r *RabbitMQHandler) startProducer() error {
	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	if _, err := channel.QueueDeclare(ResponseQueue, false, false, false, false, nil); err != nil {
		return err
	}
	r.producerChan = channel
	return nil
}

func (r *RabbitMQHandler) connect() error {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d", r.cfg.Login, r.cfg.Password, r.cfg.Host, r.cfg.Port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return err
	}
	r.conn = conn
	errChan := make(chan *amqp.Error)
	conn.NotifyClose(errChan)
	go func() {
		select {
		case <-errChan:
		case <-r.quit:
			return
		}

		for {
			time.Sleep(time.Second * 15)
			if r.closing() {
				return
			}
			if err := r.setup(); err == nil {
				return
			}
		}
	}()
	return nil
}

func (r *RabbitMQHandler) listener(jobChan <-chan amqp.Delivery) {
	defer r.listenerWg.Done()

	for data := range jobChan {
		var job models.RunJob
		if err := json.Unmarshal(data.Body, &job); err != nil {
			slog.Error("invalid run job message", "message", string(data.Body))
			continue
		}
		select {
		case r.jobs <- job:
		case <-r.quit:
			return
		}
	}
}

func (r *RabbitMQHandler) worker() {
	defer r.wg.Done()

	for job := range r.jobs {
		request := &dto.RunRequest{
			Command:          job.Command,
			ExpFolder:        job.ExpFolder,
			RunIndex:         job.RunIndex,
			Timeout:          time.Duration(job.TimeoutMs) * time.Millisecond,
			ArtifactBaseName: job.ArtifactBaseName,
			MaxFileSize:      job.MaxFileSize,
		}

		result, err := r.sup.Execute(request)
		if err != nil {
			// The run never started. This is the only error not folded
			// into a verdict.
			slog.Error("run failed to start", "id", job.Id, "error", err)
			r.send(&models.RunReport{
				Id:       job.Id,
				Status:   models.RunStatusCreated,
				Comments: err.Error(),
			})
			continue
		}

		var archived []string
		if r.archiver != nil {
			archived, err = r.archiver.Archive(context.Background(), request)
			if err != nil {
				slog.Error("failed to archive run outputs", "id", job.Id, "error", err)
			}
		}
		r.send(mappers.RunResultToReport(&job, result, archived))
	}
}

func (r *RabbitMQHandler) send(data *models.RunReport) {
	if r.producerChan == nil || r.closing() {
		return
	}
	body, _ := json.Marshal(data)
	err := r.producerChan.Publish("", ResponseQueue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		slog.Error("failed to send report to queue", "error", err)
	}
}
