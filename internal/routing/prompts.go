package routing

// Prompt text for group-chat scenarios. All group-specific wording lives
// here so the filter logic stays readable.

const groupMembersHeader = "## Group Chat Members"

// Mention rules injected into the system prompt, keyed by message source
// so the restriction strength can vary.

const mentionRulesFromUser = "**When the message @mentions multiple bots (including you), " +
	"ONLY respond to the part directed at YOU.** " +
	"Ignore instructions and questions meant for other bots entirely — " +
	"do not answer them, summarize them, or reference them in your response.\n\n" +
	"**Do NOT @mention other bots in your response** unless ALL of the following are true:\n" +
	"1. You need another bot to **execute a task** that you cannot do yourself.\n" +
	"2. Your **next step depends on** the result of that task.\n" +
	"3. There is no other way to obtain the result.\n\n" +
	"If you are unsure, do NOT @mention. Specifically:\n" +
	"- Do not @mention a bot just to ask its opinion or for general help.\n" +
	"- Do not answer on behalf of another bot, even if you know the answer.\n" +
	"- If the user's question involves another bot's expertise, " +
	"let the user decide whether to ask them.\n\n" +
	"Mention syntax: write @name in your response%s. " +
	"The system will convert it to a proper @mention automatically."

const mentionRulesFromBot = "You are replying to another bot. Keep your response focused on the task.\n" +
	"- Do NOT @mention additional bots unless the requesting bot explicitly " +
	"asked you to relay results to a specific bot by name.\n" +
	"- Avoid chain-summoning: if you can answer directly, just answer.\n\n" +
	"Mention syntax: write @name in your response%s. " +
	"The system will convert it to a proper @mention automatically."

// Reminder prepended to the user message in group chats.
const userReminderGroup = "[System] This is a group chat. " +
	"ONLY answer the part directed at you. " +
	"Do NOT answer for other bots. " +
	"Do NOT @mention other bots unless you need one to execute a task " +
	"and your next step depends on its result."

// Rules for the lightweight yes/no routing call.
const groupRoutingRules = "If from another BOT: NO for acknowledgments (OK/thanks), redundant, done. " +
	"YES for substantive question, task needing you. " +
	"If from a USER not @you: NO unless you were recently involved " +
	"(follow-up like 继续) or it clearly targets your expertise. " +
	"YES if recent follow-up or clear new request for you."

const groupRoutingPrompt = "You are: %s\n" +
	"%s\n\n" +
	"%s said: \"%s\"\n\n" +
	"%s" +
	"Rules: %s\n\n" +
	"Reply with ONLY 'YES' or 'NO'."
