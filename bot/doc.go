/*
Package bot ties the packages together into the running bot.

Bot owns the state shared by the chat commands: the pending dialog answers, the resolved guild and the calendar
reminders. Register hands its commands to go-sarah; the discord adapter feeds it inbound messages and member joins.
*/
package bot
