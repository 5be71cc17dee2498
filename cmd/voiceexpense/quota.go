package voiceexpense

// QuotaCmd prints the user's rate-limit snapshot.
// Usage: voiceexpense quota --user u1
type QuotaCmd struct {
	User string `short:"u" long:"user" description:"user id, overrides VOICE_EXPENSE_USER_ID"`
}

func (q *QuotaCmd) Execute(_ []string) error {
	ctx, cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	user, err := userID(cfg, q.User)
	if err != nil {
		return err
	}
	st, err := newStore(cfg, logger)
	if err != nil {
		return err
	}
	info, err := st.CheckRateLimit(ctx, user)
	if err != nil {
		return err
	}
	return printJSON(info)
}
