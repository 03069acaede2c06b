package ai

// SentimentPrompt asks for a one-object JSON classification. %s is the message text.
const SentimentPrompt = `Analyze the sentiment of this message: "%s".
Return JSON: {"sentiment": "positive"|"neutral"|"negative", "emotion": "one_word_label"}
Return ONLY JSON.`

// ReplyPrompt drafts a short reply. Parameters: message text, sender emotion.
const ReplyPrompt = `Write a short, helpful text message reply to: "%s".
The sender is feeling %s.
Return ONLY the reply text.`

// IntentPrompt extracts a command. Parameters: command text, current time, known contacts.
const IntentPrompt = `Extract the command details from: "%s".
Current time: %s.
Known contacts: %s.

Determine the intent:
- "send": deliver a message right now
- "schedule": deliver a message later
- "reminder": remind the user at a time
- "todo": add a task to the to-do list
- "shopping": add an item to the shopping list
- "email": send an email to a contact

Return JSON with keys:
- intent: one of the values above
- platform: "whatsapp", "telegram", "email" or null
- recipient_name: contact name found or null
- body: message text, reminder title, task or item name; for email the body, or null when only a topic is given
- subject: email subject for email, else null
- time: natural language time (e.g. "tomorrow 9am") for schedule and reminder, else null
- category: "work", "personal" or "home" when mentioned, else null
- recurring: "daily" or "weekly" when mentioned, else null
- priority: "low", "medium" or "high" for todo when mentioned, else null
- quantity: amount for shopping when mentioned, else null

Return ONLY JSON.`

// EmailPrompt drafts an email body. Parameters: subject, recipient name.
const EmailPrompt = `Write a professional and concise email body.
Subject: "%s"
To: %s
From: Me

Return ONLY the body text. Do not include a subject line or placeholders like [Your Name].`
