package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type JetStreamConfig struct {
	URL               string
	StreamName        string
	SubjectPrefix     string
	MaxReconnects     int
	ReconnectWait     time.Duration
	MaxAge            time.Duration
	MaxMsgsPerSubject int64         // Snapshots kept per draft
	Replicas          int           // Number of replicas for the stream
	DuplicateWindow   time.Duration // Window for duplicate detection
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:               nats.DefaultURL,
		StreamName:        "DRAFT_SNAPSHOTS",
		SubjectPrefix:     "draft.snapshots",
		MaxReconnects:     -1, // Infinite
		ReconnectWait:     2 * time.Second,
		MaxAge:            24 * time.Hour,
		MaxMsgsPerSubject: 16,
		Replicas:          1,
		DuplicateWindow:   2 * time.Minute,
	}
}

// JetStream publishes each snapshot to draft.snapshots.<draftID>. Observers
// read with an ordered consumer that starts at the last message per subject,
// so a late joiner gets the current state before anything newer.
type JetStream struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStream(ctx context.Context, cfg JetStreamConfig) (*JetStream, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	b := &JetStream{nc: nc, js: js, config: cfg}
	if err := b.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return b, nil
}

func (b *JetStream) streamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:              b.config.StreamName,
		Description:       "Materialized auction draft snapshots",
		Subjects:          []string{b.config.SubjectPrefix + ".>"},
		Retention:         jetstream.LimitsPolicy,
		MaxAge:            b.config.MaxAge,
		MaxMsgsPerSubject: b.config.MaxMsgsPerSubject,
		Storage:           jetstream.FileStorage,
		Replicas:          b.config.Replicas,
		Duplicates:        b.config.DuplicateWindow,
	}
}

func (b *JetStream) ensureStream(ctx context.Context) error {
	sc := b.streamConfig()

	stream, err := b.js.Stream(ctx, sc.Name)
	if err != nil {
		if _, err = b.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = b.js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().Str("stream", sc.Name).Msg("updated JetStream stream")
	}
	return nil
}

func (b *JetStream) Subject(draftID uuid.UUID) string {
	return b.config.SubjectPrefix + "." + draftID.String()
}

// MsgID identifies one published state. A heartbeat changes it; a retried
// publish of the same state does not, so the stream drops the duplicate.
func MsgID(s models.Snapshot) string {
	return s.DraftID.String() + ":" + s.Engine.LastActionID.String() + ":" +
		strconv.FormatInt(s.Engine.HeartbeatAt.UnixNano(), 10)
}

func (b *JetStream) Publish(ctx context.Context, s models.Snapshot) error {
	data, err := json.Marshal(wire(s))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	subject := b.Subject(s.DraftID)
	ack, err := b.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Draft-ID":       []string{s.DraftID.String()},
			"Last-Action-ID": []string{s.Engine.LastActionID.String()},
			"Schema-Version": []string{strconv.Itoa(s.SchemaVersion)},
		},
	},
		jetstream.WithMsgID(MsgID(s)),
		jetstream.WithExpectStream(b.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Uint64("sequence", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("published snapshot")
	return nil
}

func (b *JetStream) Subscribe(ctx context.Context, draftID uuid.UUID, fn func(models.Snapshot)) error {
	cons, err := b.js.OrderedConsumer(ctx, b.config.StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{b.Subject(draftID)},
		DeliverPolicy:  jetstream.DeliverLastPerSubjectPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		s, err := models.DecodeSnapshot(msg.Data())
		if err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("dropping undecodable snapshot")
			return
		}
		fn(s)
	})
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	go func() {
		<-ctx.Done()
		cc.Stop()
	}()
	return nil
}

func (b *JetStream) Close() error {
	if b.nc != nil {
		b.nc.Close()
	}
	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgsPerSubject == b.MaxMsgsPerSubject &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}
