package usecase

// StripMentions is exported for testing
var StripMentions = stripMentions

// BuildSessionNote is exported for testing
var BuildSessionNote = buildSessionNote

// ParseMention is exported for testing
var ParseMention = parseMention
