package eventbus

import "context"

var globalBus EventBus

// Init устанавливает глобальную шину. Вызывается один раз при старте сервера.
func Init(bus EventBus) { globalBus = bus }

// Publish отправляет событие в глобальную шину, если она инициализирована.
// До инициализации публикация — no-op: симуляция не зависит от шины.
func Publish(ctx context.Context, ev *Envelope) error {
	if globalBus == nil {
		return nil
	}
	return globalBus.Publish(ctx, ev)
}

// Subscribe подписывается на глобальную шину, если она инициализирована.
func Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if globalBus == nil {
		return noopSub{}, nil
	}
	return globalBus.Subscribe(ctx, f, h)
}

type noopSub struct{}

func (noopSub) Unsubscribe() {}
