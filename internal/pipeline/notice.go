package pipeline

import (
	"context"
	"fmt"

	"github.com/dayuer/onebot-bridge/internal/identity"
	"github.com/dayuer/onebot-bridge/internal/onebot"
	"github.com/dayuer/onebot-bridge/internal/platform"
)

// handleRecalls reports each recalled message of the batch once. Messages
// that never received a short id are ignored.
func (p *Pipeline) handleRecalls(ctx context.Context, msgs []platform.RawMessage) {
	for i := range msgs {
		m := &msgs[i]
		if !m.Recalled() {
			continue
		}
		id, ok := p.registry.Lookup(ctx, identity.KeyOf(m))
		if !ok {
			p.log.Debug().Str("msg_id", m.MsgID).Msg("Recalled message has no short id")
			continue
		}
		if !p.recalled.Add(m.MsgID) {
			continue
		}
		ev, err := p.buildRecall(ctx, m, id)
		if err != nil {
			p.log.Error().Err(err).Str("msg_id", m.MsgID).Msg("Failed to build recall notice")
			continue
		}
		if ev != nil {
			p.emitter.Emit(ctx, ev)
		}
	}
}

func (p *Pipeline) buildRecall(ctx context.Context, m *platform.RawMessage, id int32) (onebot.Event, error) {
	sender, err := p.senderUin(ctx, m)
	if err != nil {
		return nil, err
	}
	switch m.ChatKind {
	case platform.ChatFriend:
		return onebot.NewFriendRecallNotice(p.self.Uin, sender, id), nil
	case platform.ChatGroup:
		gid, err := groupIDOf(m)
		if err != nil {
			return nil, err
		}
		return onebot.NewGroupRecallNotice(p.self.Uin, gid, sender, p.recallOperator(ctx, m, gid, sender), id), nil
	default:
		return nil, nil
	}
}

// recallOperator returns the member named by the revoke tip, or the sender
// when the tip is absent or unresolvable.
func (p *Pipeline) recallOperator(ctx context.Context, m *platform.RawMessage, gid, sender int64) int64 {
	for _, el := range m.Elements {
		if el.GrayTip == nil || el.GrayTip.Revoke == nil || el.GrayTip.Revoke.OperatorUID == "" {
			continue
		}
		uid := el.GrayTip.Revoke.OperatorUID
		member, err := p.api.GroupMember(ctx, gid, uid)
		if err != nil || member == nil || member.Uin == 0 {
			p.log.Debug().Err(err).Int64("group_id", gid).Str("uid", uid).Msg("Recall operator unresolved, using sender")
			return sender
		}
		return member.Uin
	}
	return sender
}

func (p *Pipeline) handleBuddyRequest(ctx context.Context, req platform.BuddyRequest, flag string) error {
	uin, err := p.api.UinByUID(ctx, req.FriendUID)
	if err != nil {
		return fmt.Errorf("friend request from %s: %w", req.FriendUID, err)
	}
	p.log.Info().Int64("user_id", uin).Str("comment", req.ExtWords).Msg("Friend request")
	p.emitter.Emit(ctx, onebot.NewFriendRequest(p.self.Uin, uin, flag, req.ExtWords))
	return nil
}

func (p *Pipeline) handleInputStatus(ctx context.Context, status platform.InputStatus) error {
	uin, err := p.api.UinByUID(ctx, status.FromUID)
	if err != nil {
		return fmt.Errorf("input status from %s: %w", status.FromUID, err)
	}
	p.log.Debug().Int64("user_id", uin).Str("status", status.StatusText).Msg("Input status")
	p.emitter.Emit(ctx, onebot.NewInputStatusNotice(p.self.Uin, uin, status.EventType, status.StatusText))
	return nil
}
