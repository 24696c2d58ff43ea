package decoy

import (
	"bufio"
	"encoding/json"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Fallback corpus used when no corpus file is configured or readable.
var builtinMessages = []string{
	"lol that was fast",
	"anyone else seeing lag?",
	"brb grabbing coffee",
	"nice stream today",
	"what song is this",
	"first time here, loving it",
	"can you do that again?",
	"gg",
	"the quality is really good tonight",
	"where are you streaming from?",
	"haha exactly",
	"same here",
	"this is so relaxing",
	"wait what just happened",
	"ok that was impressive",
}

var senderNames = []string{
	"mia_k", "tomzhang", "pixelfan88", "night0wl", "sarah.j",
	"gamerdude", "luna_belle", "kenji_t", "casualviewer", "raindrop_42",
	"oldtimer", "newbie2023", "silentwatcher", "coffee_addict", "moonchild",
}

type chatEvent struct {
	ID   int64  `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
	Ts   int64  `json:"ts"`
}

// chatFeed produces synthetic chat events shaped like a live comment stream.
type chatFeed struct {
	node     *snowflake.Node
	messages []string
}

func newChatFeed(corpusFile string) (*chatFeed, error) {
	node, err := snowflake.NewNode(2)
	if err != nil {
		return nil, err
	}
	return &chatFeed{
		node:     node,
		messages: loadCorpus(corpusFile),
	}, nil
}

// loadCorpus reads one message per line, falling back to the built-in list
// when the file is missing or empty.
func loadCorpus(path string) []string {
	if path == "" {
		return builtinMessages
	}
	f, err := os.Open(path)
	if err != nil {
		return builtinMessages
	}
	defer f.Close()

	var messages []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			messages = append(messages, line)
		}
	}
	if len(messages) == 0 {
		return builtinMessages
	}
	return messages
}

// Next returns one serialized event with a random sender and message.
func (f *chatFeed) Next() []byte {
	event := chatEvent{
		ID:   f.node.Generate().Int64(),
		User: senderNames[rand.Intn(len(senderNames))],
		Text: f.messages[rand.Intn(len(f.messages))],
		Ts:   time.Now().Unix(),
	}
	data, _ := json.Marshal(event)
	return data
}

// randInterval picks a uniform random gap within [min, max].
func randInterval(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
