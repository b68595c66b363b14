package modbot

const GuideText = "Send me the caption or poll.\n\n" +
	"To add a caption:\n" +
	"- Just type the caption text and send it.\n\n" +
	"To create a poll:\n" +
	"- Start your message with /poll followed by the question and each option separated by a vertical bar |.\n" +
	"- Format: /poll Question|Option 1|Option 2|Option 3\n" +
	"- Example: /poll Which color do you prefer?|Red|Blue|Green\n\n" +
	"Important:\n" +
	"- Polls must have at least 2 options (and up to 10).\n" +
	"- The first item after /poll is the poll question; the remaining items are the options.\n" +
	"- Avoid using | inside option text (use it only as the separator).\n\n" +
	"After you send the caption or /poll message the bot will preview the photo with your caption or poll.\n" +
	"Tap Confirm to forward it for approval, or New Input to change it."

const (
	textStart            = "Hi! Send me an image and I will forward it to the channel."
	textSendPhoto        = "Please send a photo."
	textNoImage          = "No image found. Please send an image first."
	textImageReceived    = "Image received. Do you need to add a caption or poll to it?"
	textAlbumReceived    = "Album of %d photos received. Do you need to add a caption or poll to it?"
	textPreviewFailed    = "Your photos were received, but the preview could not be shown. Choose below whether to add a caption or poll."
	textUseButtons       = "Please use the buttons above, or send a new image to start over."
	textOutdatedPreview  = "This preview is outdated, please use the latest one."
	textForwarded        = "Image forwarded to the channel for approval."
	textForwardedCaption = "Image with caption forwarded to the channel for approval."
	textForwardedPoll    = "Image with poll forwarded to the channel for approval."
	textForwardFailed    = "Sorry, the submission could not be forwarded for approval. Please try again."
	textDiscarded        = "Your submission was discarded."
	textNothingToCancel  = "Nothing to cancel."

	textApprovalRequest   = "Approval request %s\nFrom: %s"
	textApproved          = "Message approved and forwarded to the channel."
	textPublishFailed     = "Publishing failed: %s. The request was closed, check the channel before resubmitting."
	textDisapproved       = "Message disapproved."
	textNotFound          = "Approval item not found or already processed."
	textYourApproved      = "Your submission was approved and published in the channel. Thank you!"
	textYourDisapproved   = "Your submission was not approved this time."
	textYourPublishFailed = "Your submission was approved, but it could not be published. The moderator will get in touch."

	textProbeReply      = "The moderator replied to your submission. Messages you send here are forwarded to the moderator until the conversation is closed with /cancel."
	textProbeContact    = "The moderator would like to talk to you about your submission. Messages you send here are forwarded to the moderator until the conversation is closed with /cancel."
	textRelayOpened     = "Conversation with %s about %s is open. Your messages are forwarded anonymously. Use /cancel to close it."
	textUnreachable     = "Could not reach %s, they may have blocked the bot or never started it. Contact them manually: %s"
	textFromModerator   = "Message from the moderator:\n%s"
	textFromSubmitter   = "%s (approval %s):\n%s"
	textRelayFailed     = "Your message could not be delivered: %s"
	textRelayEnded      = "The conversation has ended."
	textRelayEndedByYou = "Conversation closed."
	textUnknownPeer     = "The submitter of %s is unknown."
)
