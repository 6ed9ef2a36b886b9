package telegram

// User-facing message templates.
const (
	msgStart = "This bot collects TON tips for your channel posts. " +
		"Add it to a channel as an administrator and every new post gets tip buttons. " +
		"Use /balance to see what you have collected."
	msgBalance             = "Your balance: %s TON"
	msgWithdrawPrompt      = "Reply with the destination address and amount, for example:\n`EQabc... 1.5`"
	msgWithdrawPlaceholder = "address amount"
	msgWrongReply          = "Could not read that. Send the destination address and the amount, separated by a space."
	msgIncorrectAmount     = "That amount cannot be withdrawn. The minimum is %s TON."
	msgNotEnoughFunds      = "Not enough funds on your balance."
	msgSending             = "Sending..."
	msgWithdrawDone        = "Withdrawal sent."
	msgWithdrawFailed      = "Withdrawal failed, your balance was not charged. Try again later."
	msgUnknownButton       = "This button is no longer supported."

	btnWithdraw  = "Withdraw"
	btnCustomTip = "Custom amount"
	btnHelp      = "What is this?"

	msgFundedFooter = "Collected: %s TON"
)
