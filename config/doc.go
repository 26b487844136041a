/*
Package config loads and validates the YAML configuration file of the bot.

A configuration file names the Discord guild, the roles and channels the bot works with, the study groups per
semester, and carries the settings of the discord and calendar packages:

	server: 123456789012345678
	roles: [Student, Gast, Gamer]
	channels: [kalender]
	semesters:
	  1: [WS23]
	discord:
	  command_prefix: "."
	calendar:
	  refresh_interval: 20s
	  fallback_channel: kalender

Unknown keys are rejected.
*/
package config
