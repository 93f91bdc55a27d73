package signaling

// messageType identifies the kind of message on the wire. The concrete
// Client below frames every Link operation as one JSON message.
type messageType string

const (
	msgJoin                         messageType = "join"
	msgJoinResponse                 messageType = "join_response"
	msgReconnect                    messageType = "reconnect"
	msgReconnectResponse            messageType = "reconnect_response"
	msgMustFullReconnect            messageType = "must_full_reconnect"
	msgReadyForResponses            messageType = "ready_for_responses"
	msgPCConnected                  messageType = "pc_connected"
	msgAddTrack                     messageType = "add_track"
	msgRemoveTrack                  messageType = "remove_track"
	msgMuteTrack                    messageType = "mute_track"
	msgUpdateSubscriptionPerms      messageType = "update_subscription_permissions"
	msgAnswer                       messageType = "answer"
	msgOffer                        messageType = "offer"
	msgTrickle                      messageType = "trickle"
	msgSyncState                    messageType = "sync_state"
	msgTrackPublished               messageType = "track_published"
	msgTrackUnpublished             messageType = "track_unpublished"
	msgParticipantUpdate            messageType = "participant_update"
	msgSpeakersChanged              messageType = "speakers_changed"
	msgActiveSpeakers               messageType = "active_speakers"
	msgConnectionQuality            messageType = "connection_quality"
	msgRoomUpdate                   messageType = "room_update"
	msgMuteChanged                  messageType = "mute_changed"
	msgStreamStateUpdate            messageType = "stream_state_update"
	msgSubscribedQualityUpdate      messageType = "subscribed_quality_update"
	msgSubscriptionPermissionUpdate messageType = "subscription_permission_update"
	msgRefreshToken                 messageType = "refresh_token"
	msgLeave                        messageType = "leave"
	msgClose                        messageType = "close"
)

// envelope is the JSON frame written to and read from the WebSocket.
// Payload is type-specific and decoded based on Type.
type envelope struct {
	Type    messageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}
