package bot

// Reply keyboard buttons
const (
	btnStart       = "Start"
	btnSharePhone  = "📱 Share phone number"
	btnCheckStatus = "Check item status"
	btnSignUp      = "Sign up for a class"
	btnAdmin       = "/ADMIN/"

	btnGroups   = "/GROUPS/"
	btnCommands = "/COMMANDS/"
	btnAdmins   = "/ADMINS/"
	btnUsers    = "/USERS/"
	btnLessons  = "/LESSONS/"
	btnPC       = "/PC/"
)

// Callback data prefixes
const (
	cbFillGuestCard   = "fill_guest_card"
	cbBringToWork     = "bring_the_product_to_work"
	cbSetReady        = "set_status_ready"
	cbReceived        = "product_has_been_received"
	cbCancelSignup    = "cancel_signup"
	cbShowGroups      = "show_groups"
	cbUsersByGroup    = "list_all_users_by_group"
	cbUserCard        = "user_card"
	callbackSeparator = ":"
)

const (
	textWelcome = "Hi! This is the <b>Inspira</b> pottery workshop bot.\n\n" +
		"Here you can sign up for a class and follow your item from the kiln to your hands."
	textHelp           = "Need help? Write to our support or visit the site."
	textFailure        = "Something went wrong 😞 Please try again later."
	textNotUnderstood  = "I don't understand. Use /help to see what I can do."
	textArgsInvalid    = "➜ arguments invalid ❌"
	textAskPhone       = "Please share your phone number so we can find your item 👇"
	textPhoneSaved     = "Thank you, your number is saved ✅"
	textForeignContact = "Please share your own phone number 👇"
	textCancelled      = "Cancelled."
	textNothingToStop  = "Nothing to cancel."
	textSessionInput   = "Please use the buttons below 👇"

	textStatusWork     = "Your item is <b>IN WORK</b> ⌛\n\nWe will let you know when it is ready."
	textStatusDone     = "Your item is <b>READY</b> 🟡\n\nCome and pick it up! Press the button when it is in your hands."
	textStatusReceived = "Your item is already in your hands ✅"
	textStatusWait     = "Your item is in the queue ⏳"
	textStatusUnknown  = "The status of your item is not defined yet."

	textChooseDate     = "Choose the date of the class 📅"
	textChooseTime     = "Choose the time ⏰"
	textChooseActivity = "Choose the activity 🎨"
	textAlreadyBooked  = "You are already signed up for a class."
	textSlotFull       = "Sorry, all places for this time are taken 😞 Try another slot."
	textTicketCaption  = "Your ticket ✅"
	textSignupCancel   = "Your booking is cancelled 🛑"
	textNoSignup       = "You have no active booking."

	textTakenIntoWork = "Your item has been taken into work! ⌛"
	textItemReady     = "Your item is <b>READY</b> 🟡\n\nCome and pick it up! Press the button when it is in your hands."
	textThanks        = "Thank you for coming to Inspira 🤍"

	textRateLimited = "Too many requests ⛔ You are blocked for %s."
	textBanned      = "Sorry, you cannot use this bot ⛔"

	textAdminPanel = "➜ <b>ADMIN PANEL</b> ➜\n\nChoose a section below."
	textCommands   = "➜ <b>COMMANDS</b> ➜\n\n" +
		"/block <code>id</code> – ban a user\n" +
		"/unblock <code>id</code> – lift a ban\n" +
		"/limited_users – banned users\n" +
		"/i <code>id</code> – user card\n" +
		"/drop <code>id</code> – delete a user\n" +
		"/sms <code>id</code> <code>html</code> – message a user\n" +
		"/all <code>html</code> – message everyone\n" +
		"/export – users as CSV\n" +
		"/referrals – latest arrivals\n\n" +
		"<b>Superuser</b>\n" +
		"/add_admin – grant admin rights\n" +
		"/drop_admin <code>id</code> – revoke admin rights\n" +
		"/reboot – restart the bot"
)
