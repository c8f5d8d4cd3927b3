// Package chat connects the relay to Discord.
//
// Gateway implements relay.Platform on top of a discordgo session: it lists and
// manages guild text channels, sends and fetches messages and answers permission
// checks. Run opens the gateway connection, routes Ready, GuildCreate,
// GuildDelete, MessageCreate and MessageDelete events into a relay.Service and
// closes the session when the context ends.
//
// The bot needs the Guilds, GuildMessages and MessageContent intents, plus the
// Manage Channels permission in every guild it reconciles.
package chat
