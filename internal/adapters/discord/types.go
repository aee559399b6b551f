package discord

import (
	"encoding/json"
	"time"
)

// Config holds Discord adapter configuration.
type Config struct {
	BotToken string `yaml:"bot_token"`
	// ApplicationID is learned from READY when empty.
	ApplicationID string `yaml:"application_id"`
	// GuildID registers commands for one guild instead of globally.
	GuildID string `yaml:"guild_id"`
	// AllowedRoleIDs gates /todo. Empty lets everyone run it.
	AllowedRoleIDs []string `yaml:"allowed_role_ids"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{}
}

// Gateway intents (https://discord.com/developers/docs/topics/gateway#gateway-intents)
const (
	IntentGuilds         = 1 << 0
	IntentGuildMessages  = 1 << 9
	IntentDirectMessages = 1 << 12
	IntentMessageContent = 1 << 15
)

// DefaultIntents cover slash commands, message history and the shipped listener.
const DefaultIntents = IntentGuilds | IntentGuildMessages | IntentMessageContent

// Discord API constants
const (
	DiscordAPIURL = "https://discord.com/api/v10"

	OpcodeDispatch       = 0
	OpcodeHeartbeat      = 1
	OpcodeIdentify       = 2
	OpcodeResume         = 6
	OpcodeReconnect      = 7
	OpcodeInvalidSession = 9
	OpcodeHello          = 10
	OpcodeHeartbeatAck   = 11

	// Close codes after which reconnecting is pointless.
	CloseCodeAuthFailed       = 4004
	CloseCodeDisallowedIntent = 4014
)

// Gateway dispatch event names.
const (
	EventReady             = "READY"
	EventMessageCreate     = "MESSAGE_CREATE"
	EventInteractionCreate = "INTERACTION_CREATE"
)

// Interaction types.
const (
	InteractionPing             = 1
	InteractionApplicationCmd   = 2
	InteractionMessageComponent = 3
	InteractionModalSubmit      = 5
)

// Interaction callback types.
const (
	ResponseChannelMessage         = 4
	ResponseDeferredChannelMessage = 5
	ResponseDeferredUpdateMessage  = 6
	ResponseUpdateMessage          = 7
	ResponseModal                  = 9
)

// Component types and button styles.
const (
	ComponentActionRow    = 1
	ComponentButton       = 2
	ComponentStringSelect = 3
	ComponentTextInput    = 4

	ButtonPrimary   = 1
	ButtonSecondary = 2
	ButtonSuccess   = 3
	ButtonDanger    = 4

	TextInputShort     = 1
	TextInputParagraph = 2
)

// Application command option types.
const (
	OptionInteger = 4
	OptionUser    = 6
	OptionChannel = 7
)

// FlagEphemeral marks an interaction reply visible only to the invoker.
const FlagEphemeral = 1 << 6

// MaxMessageLength is Discord's content limit.
const MaxMessageLength = 2000

// GatewayEvent represents a Discord Gateway payload.
type GatewayEvent struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  *int            `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

type heartbeat struct {
	Op int  `json:"op"`
	D  *int `json:"d"`
}

type identify struct {
	Op int          `json:"op"`
	D  identifyData `json:"d"`
}

type identifyData struct {
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
	Properties map[string]string `json:"properties"`
}

type resume struct {
	Op int        `json:"op"`
	D  resumeData `json:"d"`
}

type resumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
}

type hello struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

// Ready is the READY dispatch payload.
type Ready struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
	User             User   `json:"user"`
	Application      struct {
		ID string `json:"id"`
	} `json:"application"`
}

// User represents a Discord user.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// DisplayName returns the global name, falling back to the username.
func (u User) DisplayName() string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Member represents a guild member.
type Member struct {
	User  *User    `json:"user,omitempty"`
	Nick  string   `json:"nick,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
}

// MessageReference points at the message being replied to.
type MessageReference struct {
	MessageID string `json:"message_id,omitempty"`
	ChannelID string `json:"channel_id,omitempty"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Message represents a Discord message, as returned by REST and by
// MESSAGE_CREATE.
type Message struct {
	ID                string            `json:"id,omitempty"`
	ChannelID         string            `json:"channel_id,omitempty"`
	GuildID           string            `json:"guild_id,omitempty"`
	Author            *User             `json:"author,omitempty"`
	Content           string            `json:"content,omitempty"`
	Timestamp         time.Time         `json:"timestamp,omitempty"`
	Attachments       []Attachment      `json:"attachments,omitempty"`
	Mentions          []User            `json:"mentions,omitempty"`
	MessageReference  *MessageReference `json:"message_reference,omitempty"`
	ReferencedMessage *Message          `json:"referenced_message,omitempty"`
	Embeds            []Embed           `json:"embeds,omitempty"`
	Components        []Component       `json:"components,omitempty"`
}

// MessageSend is the body of a create-message call.
type MessageSend struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// MessageEdit is the body of an edit-message call. A non-nil empty
// Components strips every control.
type MessageEdit struct {
	Content    *string      `json:"content,omitempty"`
	Embeds     []Embed      `json:"embeds,omitempty"`
	Components *[]Component `json:"components,omitempty"`
}

// Embed represents a Discord embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField is one name/value block of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents an embed footer.
type EmbedFooter struct {
	Text string `json:"text,omitempty"`
}

// Component is an action row, button, string select or text input.
type Component struct {
	Type        int            `json:"type"`
	Components  []Component    `json:"components,omitempty"`
	Style       int            `json:"style,omitempty"`
	Label       string         `json:"label,omitempty"`
	CustomID    string         `json:"custom_id,omitempty"`
	Disabled    bool           `json:"disabled,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	MinLength   int            `json:"min_length,omitempty"`
	MaxLength   int            `json:"max_length,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Value       string         `json:"value,omitempty"`
}

// SelectOption is one entry of a string select.
type SelectOption struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default,omitempty"`
}

// Interaction is the INTERACTION_CREATE payload.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          int             `json:"type"`
	Token         string          `json:"token"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *User           `json:"user,omitempty"`
	Data          InteractionData `json:"data"`
	Message       *Message        `json:"message,omitempty"`
}

// Invoker returns the user who triggered the interaction.
func (i *Interaction) Invoker() User {
	if i.Member != nil && i.Member.User != nil {
		return *i.Member.User
	}
	if i.User != nil {
		return *i.User
	}
	return User{}
}

// InteractionData carries the command, component or modal payload.
type InteractionData struct {
	ID         string              `json:"id,omitempty"`
	Name       string              `json:"name,omitempty"`
	Options    []InteractionOption `json:"options,omitempty"`
	Resolved   *Resolved           `json:"resolved,omitempty"`
	CustomID   string              `json:"custom_id,omitempty"`
	Values     []string            `json:"values,omitempty"`
	Components []Component         `json:"components,omitempty"`
}

// Option returns the named command option.
func (d *InteractionData) Option(name string) (InteractionOption, bool) {
	for _, o := range d.Options {
		if o.Name == name {
			return o, true
		}
	}
	return InteractionOption{}, false
}

// ModalValue returns the submitted value of a modal text input.
func (d *InteractionData) ModalValue(customID string) string {
	for _, row := range d.Components {
		for _, c := range row.Components {
			if c.CustomID == customID {
				return c.Value
			}
		}
	}
	return ""
}

// InteractionOption is one filled command option.
type InteractionOption struct {
	Name  string          `json:"name"`
	Type  int             `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Resolved holds the users, members and channels referenced by options.
type Resolved struct {
	Users    map[string]User    `json:"users,omitempty"`
	Members  map[string]Member  `json:"members,omitempty"`
	Channels map[string]Channel `json:"channels,omitempty"`
}

// Channel is the partial channel carried in resolved data.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Type int    `json:"type"`
}

// InteractionResponse is sent to acknowledge an interaction.
type InteractionResponse struct {
	Type int                      `json:"type"`
	Data *InteractionResponseData `json:"data,omitempty"`
}

// InteractionResponseData is the message or modal of a callback.
type InteractionResponseData struct {
	Content    string       `json:"content,omitempty"`
	Embeds     []Embed      `json:"embeds,omitempty"`
	Components *[]Component `json:"components,omitempty"`
	Flags      int          `json:"flags,omitempty"`
	CustomID   string       `json:"custom_id,omitempty"`
	Title      string       `json:"title,omitempty"`
}

// ApplicationCommand is a slash command definition.
type ApplicationCommand struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Options     []CommandOption `json:"options,omitempty"`
}

// CommandOption is one parameter of a slash command.
type CommandOption struct {
	Type        int    `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	MinValue    *int   `json:"min_value,omitempty"`
	MaxValue    *int   `json:"max_value,omitempty"`
}
