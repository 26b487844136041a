package dialog

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/hm-eit/eitbot/guild"
)

const embedColor = 0x2fb923

func setupStartEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Setup",
		Description: "Willkommen auf unserem Elektrotechnik Discord Server! :wave:\n\n" +
			"Dieses Setup ist dafür da, damit wir und deine Kommilitonen dich auf dem Server (besser) erkennen " +
			"und du zu deiner Gruppe passende Informationen erhältst.\n\n" +
			"*Deine Angaben werden von diesem Bot weder gespeichert noch auf irgendeine Weise verarbeitet, " +
			"du erhältst lediglich deinen Namen und deine Studiengruppe auf unserem Server zugewiesen.*\n\n" +
			"**Antworte bitte mit deinem Vor- und Nachnamen auf diese Nachricht** :keyboard:\n" +
			"_Wenn du deinen vollen Namen hier nicht angeben willst, darfst du auch nur deinen Vornamen " +
			"oder einen Spitznamen benutzen._",
		Color: embedColor,
	}
}

func nameErrorEmbed(_ string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Value Error",
		Description: "Hoppla!\nDein eingegebener Name ist ungültig.\n" +
			"Gehe sicher, dass dein Name nicht länger als 32 Zeichen ist und keine Zahlen oder Sonderzeichen enthält!",
		Color: embedColor,
	}
}

func semesterStartEmbed(semesters []*guild.Semester) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Semesterstart",
		Description: "Hallo liebe Kommilitonen und Kommilitoninnen!\n\n" +
			"Das neue Semester steht vor der Tür. :exploding_head:\n\n" +
			"Damit auf dem Elektrotechnik Studium Server die Studiengruppen wieder übereinstimmen, " +
			"antworte bitte mit deiner Studiengruppe auf diese Nachricht! :keyboard:\n\n" +
			"Bei Problemen mit der Registrierung schau unter #:grey_question:-faq!\n" +
			"Für die Leute, die auf unserem Server neu sind, lest euch bitte die Regeln unter #!-rules durch.",
		Color: embedColor,
	}
	addGroupFields(embed, semesters)
	return embed
}

func groupSelectEmbed(name string, semesters []*guild.Semester) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Studiengruppen Auswahl",
		Description: fmt.Sprintf("Hallo **%s**!\n"+
			"Antworte jetzt noch mit deiner Studiengruppe, um dieses Setup abzuschließen. :keyboard:\n\n"+
			"**Folgende Studiengruppen stehen zur Auswahl:**\n\n", name),
		Color: embedColor,
	}
	addGroupFields(embed, semesters)
	return embed
}

func addGroupFields(embed *discordgo.MessageEmbed, semesters []*guild.Semester) {
	for _, semester := range semesters {
		names := make([]string, 0, len(semester.Groups))
		for _, group := range semester.Groups {
			names = append(names, group.Name)
		}
		if len(names) == 0 {
			continue
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   semester.String(),
			Value:  strings.Join(names, "\n"),
			Inline: true,
		})
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Sonstige", Value: guild.RoleGuest, Inline: true})
}

func groupErrorEmbed(answer string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Value Error",
		Description: fmt.Sprintf("Hoppla!\nWie es scheint, ist \"%s\" keine gültige Studiengruppe.\n"+
			"Probiere es bitte nochmal mit einer Studiengruppe aus der Liste!\n", answer),
		Color: embedColor,
	}
}

func setupEndEmbed(groupName string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Ende",
		Description: fmt.Sprintf("Vielen Dank für die Einschreibung in unseren EIT-Server.\n"+
			"Du wurdest der Gruppe **%s** zugewiesen.\n\n"+
			"Hiermit hast du das Setup abgeschlossen und deine Angaben werden in den Server eingetragen.\n\n"+
			"**Falls etwas mit deiner Eingabe nicht stimmt, führe das Setup einfach nochmal aus und pass deine Eingabe an!**",
			groupName),
		Color: embedColor,
	}
}
