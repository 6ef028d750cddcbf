package hub

// ScopeKindConversation is the only scope kind the subscribe protocol
// currently recognizes.
const ScopeKindConversation = "conversation"

// ConversationScope builds the index key for a conversation's topic.
func ConversationScope(conversationID string) string {
	return ScopeKindConversation + ":" + conversationID
}
