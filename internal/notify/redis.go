package notify

import (
	"context"
	"encoding/json"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dropDatabas3/sysgate/internal/access"
)

// Redis es el Notifier sobre pub/sub de Redis. Cada cambio se publica como el
// JSON del estado completo en un canal; todos los procesos suscriptos hacen
// fan-out local a sus gates.
type Redis struct {
	client  *rdb.Client
	channel string
	log     *zap.Logger
	local   *Memory

	// onResync se invoca tras una (re)conexión del transporte para que el
	// dueño re-lea el store y acote la ventana de staleness.
	onResync func()

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedis crea el notifier y arranca el loop de recepción en background.
// onResync puede ser nil.
func NewRedis(client *rdb.Client, channel string, onResync func()) *Redis {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		client:   client,
		channel:  channel,
		log:      zap.L().Named("notify.redis"),
		local:    NewMemory(),
		onResync: onResync,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.listen(ctx)
	return r
}

func (r *Redis) Subscribe(h Handler) Subscription {
	return r.local.Subscribe(h)
}

func (r *Redis) Publish(ctx context.Context, s access.State) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, b).Err()
}

// ResyncLocal reparte un estado leído del store solo a los suscriptores de
// este proceso. Lo usa el hook de resync tras una reconexión: el estado no
// pasó por el canal, así que no hay que re-publicarlo.
func (r *Redis) ResyncLocal(s access.State) {
	_ = r.local.Publish(context.Background(), s)
}

func (r *Redis) Close() error {
	r.cancel()
	<-r.done
	return nil
}

// listen recibe mensajes del canal y los reparte localmente. Ante un corte de
// transporte reintenta con backoff y dispara onResync: los eventos perdidos
// durante la partición no se recuperan, se re-lee el estado actual.
func (r *Redis) listen(ctx context.Context) {
	defer close(r.done)

	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Warn("pubsub receive failed, retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			if r.onResync != nil {
				r.onResync()
			}
			continue
		}

		var s access.State
		if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
			r.log.Warn("discarding malformed access event", zap.Error(err))
			continue
		}
		_ = r.local.Publish(ctx, s)
	}
}
