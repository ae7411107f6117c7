package chat

import (
	"loopin-chat/models"
)

// Regole di merge condivise sulla pagina messaggi in cache.
// Tutte operano sullo snapshot più recente passato dall'updater.

func messagesFrom(value interface{}) []models.Message {
	page, _ := value.([]models.Message)
	return page
}

func chatsFrom(value interface{}) []models.Chat {
	list, _ := value.([]models.Chat)
	return list
}

// reversePage inverte una pagina dal-più-recente in ordine cronologico
// ascendente (il server pagina all'indietro, la vista è ascendente)
func reversePage(page []models.Message) []models.Message {
	out := make([]models.Message, len(page))
	for i, msg := range page {
		out[len(page)-1-i] = msg
	}
	return out
}

// appendIfAbsent aggiunge il messaggio in coda solo se nessun messaggio
// con lo stesso id è già presente (de-dup per l'eco del mittente)
func appendIfAbsent(page []models.Message, msg models.Message) []models.Message {
	for _, existing := range page {
		if existing.ID == msg.ID {
			return page
		}
	}
	return append(page, msg)
}

// applyReactionAdd applica una reaction_added al messaggio indicato.
// Una parte può avere una sola emoji attiva per messaggio: la vecchia
// emoji della stessa parte viene azzerata prima di applicare la nuova.
// Copy-on-write: gli snapshot già consegnati ai lettori condividono
// l'array sottostante e non vanno mai mutati in place.
func applyReactionAdd(page []models.Message, messageID, emoji string, byMe bool) []models.Message {
	for i := range page {
		if page[i].ID != messageID {
			continue
		}
		out := make([]models.Message, len(page))
		copy(out, page)
		reactions := append([]models.Reaction(nil), page[i].Reactions...)

		for j := range reactions {
			if reactions[j].Emoji != emoji {
				setPartyFlag(&reactions[j], byMe, false)
			}
		}
		found := false
		for j := range reactions {
			if reactions[j].Emoji == emoji {
				setPartyFlag(&reactions[j], byMe, true)
				found = true
				break
			}
		}
		if !found {
			reaction := models.Reaction{Emoji: emoji}
			setPartyFlag(&reaction, byMe, true)
			reactions = append(reactions, reaction)
		}
		out[i].Reactions = pruneReactions(reactions)
		return out
	}
	return page
}

// applyReactionRemove azzera il flag della parte sull'emoji indicata,
// con la stessa disciplina copy-on-write di applyReactionAdd
func applyReactionRemove(page []models.Message, messageID, emoji string, byMe bool) []models.Message {
	for i := range page {
		if page[i].ID != messageID {
			continue
		}
		out := make([]models.Message, len(page))
		copy(out, page)
		reactions := append([]models.Reaction(nil), page[i].Reactions...)

		for j := range reactions {
			if reactions[j].Emoji == emoji {
				setPartyFlag(&reactions[j], byMe, false)
				break
			}
		}
		out[i].Reactions = pruneReactions(reactions)
		return out
	}
	return page
}

func setPartyFlag(reaction *models.Reaction, byMe bool, value bool) {
	if byMe {
		reaction.ReactedByMe = value
	} else {
		reaction.ReactedByOther = value
	}
}

// pruneReactions ricalcola ogni count come reactedByMe + reactedByOther
// ed elimina le voci rimaste a zero
func pruneReactions(reactions []models.Reaction) []models.Reaction {
	out := reactions[:0]
	for _, reaction := range reactions {
		count := 0
		if reaction.ReactedByMe {
			count++
		}
		if reaction.ReactedByOther {
			count++
		}
		if count == 0 {
			continue
		}
		reaction.Count = count
		out = append(out, reaction)
	}
	return out
}
