package squad

import (
	"strings"

	"turfhub/internal/util"
	"turfhub/pkg/domain"
)

// NewPoll builds a poll with empty vote lists.
func NewPoll(question string, options []string, createdBy string) (domain.Poll, error) {
	question = strings.TrimSpace(question)
	poll := domain.Poll{
		ID:        util.NewID(),
		Question:  question,
		CreatedBy: createdBy,
	}
	for _, text := range options {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		poll.Options = append(poll.Options, domain.PollOption{
			ID:    util.NewID(),
			Text:  text,
			Votes: []string{},
		})
	}
	if question == "" || len(poll.Options) < 2 {
		return domain.Poll{}, ErrInvalidPoll
	}
	return poll, nil
}

// Vote moves voter onto optionID. The voter is first removed from every option,
// so each voter holds at most one vote per poll. The input poll is not modified.
func Vote(p domain.Poll, voter, optionID string) (domain.Poll, error) {
	found := false
	for _, opt := range p.Options {
		if opt.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return p, ErrUnknownOption
	}
	out := p
	out.Options = make([]domain.PollOption, len(p.Options))
	for i, opt := range p.Options {
		votes := make([]string, 0, len(opt.Votes)+1)
		for _, v := range opt.Votes {
			if v != voter {
				votes = append(votes, v)
			}
		}
		if opt.ID == optionID {
			votes = append(votes, voter)
		}
		opt.Votes = votes
		out.Options[i] = opt
	}
	return out, nil
}

// Tally counts votes per option id.
func Tally(p domain.Poll) map[string]int {
	counts := make(map[string]int, len(p.Options))
	for _, opt := range p.Options {
		counts[opt.ID] = len(opt.Votes)
	}
	return counts
}

// VoteOf returns the option the voter currently backs.
func VoteOf(p domain.Poll, voter string) (string, bool) {
	for _, opt := range p.Options {
		for _, v := range opt.Votes {
			if v == voter {
				return opt.ID, true
			}
		}
	}
	return "", false
}
