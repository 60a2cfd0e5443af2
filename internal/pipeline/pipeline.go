// Package pipeline translates platform session callbacks into OneBot events.
//
// Each callback batch is split into isolated tasks: one failing message,
// recall, or request is logged and skipped without affecting the rest of the
// batch. Identity assignment for a message happens synchronously, in batch
// order, before any of its construction tasks are scheduled.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/onebot"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

// Emitter receives the produced events. network.Manager implements it.
type Emitter interface {
	Emit(ctx context.Context, ev onebot.Event)
}

// Options configures a Pipeline.
type Options struct {
	API      platform.API
	Registry identity.Registry
	Emitter  Emitter
	Self     platform.SelfInfo
	// BootTime: messages stamped at or before it are never reported.
	BootTime          time.Time
	ReportSelfMessage bool
	// Debug attaches the raw platform record to message events and reports
	// messages that produced no segments.
	Debug         bool
	MessageFormat string
	Logger        zerolog.Logger
}

// Pipeline implements platform.Listener.
type Pipeline struct {
	api      platform.API
	registry identity.Registry
	emitter  Emitter
	self     platform.SelfInfo
	boot     time.Time
	report   bool
	debug    bool
	format   string
	log      zerolog.Logger

	tasks     taskGroup
	completed *seenSet
	recalled  *seenSet
	requests  *seenSet
}

var _ platform.Listener = (*Pipeline)(nil)

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	if opts.BootTime.IsZero() {
		opts.BootTime = time.Now()
	}
	if opts.MessageFormat == "" {
		opts.MessageFormat = "array"
	}
	log := opts.Logger.With().Str("component", "pipeline").Logger()
	return &Pipeline{
		api:       opts.API,
		registry:  opts.Registry,
		emitter:   opts.Emitter,
		self:      opts.Self,
		boot:      opts.BootTime,
		report:    opts.ReportSelfMessage,
		debug:     opts.Debug,
		format:    opts.MessageFormat,
		log:       log,
		tasks:     taskGroup{log: log},
		completed: newSeenSet(4096),
		recalled:  newSeenSet(4096),
		requests:  newSeenSet(1024),
	}
}

// Wait blocks until every task scheduled so far has finished.
func (p *Pipeline) Wait() {
	p.tasks.Wait()
}

func (p *Pipeline) afterBoot(msgTime int64) bool {
	return time.Unix(msgTime, 0).After(p.boot)
}

func (p *Pipeline) isSelf(m *platform.RawMessage) bool {
	if m.SenderUID != "" && m.SenderUID == p.self.UID {
		return true
	}
	return m.SenderUin != 0 && m.SenderUin == p.self.Uin
}

// OnRecvMsg handles a batch of newly arrived messages.
func (p *Pipeline) OnRecvMsg(ctx context.Context, msgs []platform.RawMessage) {
	prev := closedTurn()
	for i := range msgs {
		m := msgs[i]
		if !p.afterBoot(m.MsgTime) {
			p.log.Debug().
				Str("msg_id", m.MsgID).
				Int64("msg_time", m.MsgTime).
				Time("boot_time", p.boot).
				Msg("Message predates boot, not reporting")
			continue
		}
		id, err := p.registry.Assign(ctx, identity.KeyOf(&m))
		if err != nil {
			p.log.Error().Err(err).Str("msg_id", m.MsgID).Msg("Failed to assign message id")
			continue
		}
		prev = p.emitMessage(ctx, m, id, prev)
	}
}

// OnMsgInfoListUpdate handles send-completion and recall status changes.
func (p *Pipeline) OnMsgInfoListUpdate(ctx context.Context, msgs []platform.RawMessage) {
	batch := append([]platform.RawMessage(nil), msgs...)

	p.tasks.Go("recall", func() error {
		p.handleRecalls(ctx, batch)
		return nil
	})

	for i := range batch {
		m := batch[i]
		if !p.isSelf(&m) || m.SendStatus != platform.SendStatusSent {
			continue
		}
		if !p.completed.Add(m.MsgID) {
			continue
		}
		if p.report {
			id, err := p.registry.Assign(ctx, identity.KeyOf(&m))
			if err != nil {
				p.completed.Remove(m.MsgID)
				p.log.Error().Err(err).Str("msg_id", m.MsgID).Msg("Failed to assign message id")
				continue
			}
			p.emitMessage(ctx, m, id, closedTurn())
			continue
		}
		p.tasks.Go("self_message_log", func() error {
			id, _ := p.registry.Lookup(ctx, identity.KeyOf(&m))
			ev, err := p.buildMessage(ctx, &m, id)
			if err != nil {
				p.completed.Remove(m.MsgID)
				return err
			}
			p.logMessage(ev)
			return nil
		})
	}
}

// OnBuddyReqChange reports pending friend requests.
func (p *Pipeline) OnBuddyReqChange(ctx context.Context, reqs []platform.BuddyRequest) {
	for _, req := range reqs {
		if req.IsInitiator || (req.IsDecide && req.ReqType != platform.BuddyReqMeInitiatorWaitPeerConfirm) {
			continue
		}
		flag := onebot.FriendRequestFlag(req.FriendUID, req.ReqTime)
		if !p.requests.Add(flag) {
			continue
		}
		req := req
		p.tasks.Go("buddy_request", func() error {
			if err := p.handleBuddyRequest(ctx, req, flag); err != nil {
				p.requests.Remove(flag)
				return err
			}
			return nil
		})
	}
}

// OnInputStatusPush reports a typing indicator change.
func (p *Pipeline) OnInputStatusPush(ctx context.Context, status platform.InputStatus) {
	p.tasks.Go("input_status", func() error {
		return p.handleInputStatus(ctx, status)
	})
}

// turn sequences emission of message events in batch order while letting
// their construction run concurrently.
type turn chan struct{}

func closedTurn() turn {
	t := make(turn)
	close(t)
	return t
}

// emitMessage schedules the message event and the two derived notices for m.
// The message event is emitted only after prev's message event was handled.
func (p *Pipeline) emitMessage(ctx context.Context, m platform.RawMessage, id int32, prev turn) turn {
	done := make(turn)
	p.tasks.Go("message", func() error {
		defer close(done)
		ev, err := p.buildMessage(ctx, &m, id)
		select {
		case <-prev:
		case <-ctx.Done():
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		p.deliverMessage(ctx, &m, ev)
		return nil
	})
	p.tasks.Go("group_notice", func() error {
		ev, err := p.buildGroupNotice(ctx, &m)
		if err != nil || ev == nil {
			return err
		}
		p.emitter.Emit(ctx, ev)
		return nil
	})
	p.tasks.Go("private_notice", func() error {
		ev, err := p.buildPrivateNotice(ctx, &m)
		if err != nil || ev == nil {
			return err
		}
		p.emitter.Emit(ctx, ev)
		return nil
	})
	return done
}

func (p *Pipeline) deliverMessage(ctx context.Context, m *platform.RawMessage, ev *onebot.MessageEvent) {
	self := ev.UserID == p.self.Uin
	if p.debug {
		ev.Raw = m
	} else if len(ev.Segments()) == 0 {
		if self {
			p.logMessage(ev)
		}
		return
	}
	p.logMessage(ev)

	if self && !p.report {
		return
	}
	if self {
		ev.MarkSelf(m.PeerUin)
	}
	p.emitter.Emit(ctx, ev)
}

func (p *Pipeline) logMessage(ev *onebot.MessageEvent) {
	e := p.log.Info().
		Str("type", ev.MessageType).
		Int64("user_id", ev.UserID).
		Int32("message_id", ev.MessageID)
	if ev.GroupID != 0 {
		e = e.Int64("group_id", ev.GroupID)
	}
	e.Msg(ev.RawMessage)
}
