package ledger

import (
	"context"
	"fmt"
)

// UpdateConfig replaces the whole configuration. Owner only.
func (l *Ledger) UpdateConfig(ctx context.Context, caller string, cfg Config) error {
	return l.exec(ctx, "update_config", func(tx *txn, p Policy) error {
		if err := p.requireOwner(caller); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		l.st.config.set(tx, configKey, cfg)
		return nil
	})
}

// SetTipAvailable 打赏总开关
func (l *Ledger) SetTipAvailable(ctx context.Context, caller string, available bool) error {
	return l.exec(ctx, "set_tip_available", func(tx *txn, p Policy) error {
		if err := p.requireOwner(caller); err != nil {
			return err
		}
		cfg := p.Config()
		cfg.TipAvailable = available
		l.st.config.set(tx, configKey, cfg)
		return nil
	})
}

// SetWithdrawAvailable 充值/提现总开关
func (l *Ledger) SetWithdrawAvailable(ctx context.Context, caller string, available bool) error {
	return l.exec(ctx, "set_withdraw_available", func(tx *txn, p Policy) error {
		if err := p.requireOwner(caller); err != nil {
			return err
		}
		cfg := p.Config()
		cfg.WithdrawAvailable = available
		l.st.config.set(tx, configKey, cfg)
		return nil
	})
}

func (l *Ledger) WhitelistToken(ctx context.Context, caller string, token TokenID, params WhitelistedToken) error {
	return l.exec(ctx, "whitelist_token", func(tx *txn, p Policy) error {
		if err := p.requireOwner(caller); err != nil {
			return err
		}
		if err := token.validate(); err != nil {
			return err
		}
		if err := params.Validate(); err != nil {
			return err
		}
		l.st.tokens.set(tx, token, params)
		return nil
	})
}

// RemoveWhitelistedToken stops new deposits, tips and withdrawals of token.
// Balances are kept and become usable again if the token is re-added.
func (l *Ledger) RemoveWhitelistedToken(ctx context.Context, caller string, token TokenID) error {
	return l.exec(ctx, "remove_whitelisted_token", func(tx *txn, p Policy) error {
		if err := p.requireOwner(caller); err != nil {
			return err
		}
		if !p.IsWhitelisted(token) {
			return fmt.Errorf("%w: %s", ErrTokenNotWhitelisted, token)
		}
		l.st.tokens.del(tx, token)
		return nil
	})
}

func (l *Ledger) SetChatSettings(ctx context.Context, caller string, chat int64, settings ChatSettings) error {
	return l.exec(ctx, "set_chat_settings", func(tx *txn, p Policy) error {
		if err := p.requireOwner(caller); err != nil {
			return err
		}
		if chat == 0 {
			return fmt.Errorf("%w: chat id is zero", ErrInvalidArgument)
		}
		if err := settings.Validate(); err != nil {
			return err
		}
		l.st.chats.set(tx, chat, settings)
		return nil
	})
}

func (l *Ledger) DeleteChatSettings(ctx context.Context, caller string, chat int64) error {
	return l.exec(ctx, "delete_chat_settings", func(tx *txn, p Policy) error {
		if err := p.requireOwner(caller); err != nil {
			return err
		}
		if _, ok := p.Chat(chat); !ok {
			return fmt.Errorf("%w: chat %d has no settings", ErrInvalidArgument, chat)
		}
		l.st.chats.del(tx, chat)
		return nil
	})
}
