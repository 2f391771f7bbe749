package worker

import (
	"context"
	"errors"
	"log"

	"shop-service/internal/broker"
	"shop-service/internal/models"
)

// OrderPersistence is the slice of the database store the worker writes to.
type OrderPersistence interface {
	UpsertOrder(ctx context.Context, order *models.Order) error
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

// OrderEventsWorker persists placed orders and status changes from the
// event stream into the database. The in-memory repository answers reads
// for the live session; this worker is the write-behind path.
type OrderEventsWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	persistence  OrderPersistence
}

// NewOrderEventsWorker creates a new order events worker
func NewOrderEventsWorker(consumer *broker.Consumer, persistence OrderPersistence) *OrderEventsWorker {
	w := &OrderEventsWorker{
		consumer:    consumer,
		persistence: persistence,
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.handleOrderPlaced)
	eventHandler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *OrderEventsWorker) Start(ctx context.Context) error {
	log.Println("Starting order events worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *OrderEventsWorker) Stop() error {
	log.Println("Stopping order events worker...")
	return w.consumer.Close()
}

func (w *OrderEventsWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	log.Printf("Persisting placed order: %s", event.Order.ID)
	return w.persistence.UpsertOrder(ctx, &event.Order)
}

func (w *OrderEventsWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	log.Printf("Persisting status change: order=%s status=%s", event.OrderID, event.Status)

	err := w.persistence.UpdateOrderStatus(ctx, event.OrderID, event.Status)
	if err != nil {
		var nf *models.NotFoundError
		if errors.As(err, &nf) {
			// Status event arrived before the placed event was persisted.
			// Leave it uncommitted so the consumer retries.
			log.Printf("Order %s not yet persisted, will retry", event.OrderID)
		}
		return err
	}
	return nil
}
