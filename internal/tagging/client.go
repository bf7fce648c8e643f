package tagging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const autoPromptTemplate = `Describe this photo as keywords for photo management software.
Return only a comma-separated list of keywords, without numbering or formatting.
Example of the expected answer: Paris, Eiffel Tower, Monument, Architecture, Night

Rules:
- Keywords in %s
- Between 5 and %d keywords
- Precise and descriptive
- No articles`

const targetedPromptTemplate = `Analyze this photo and answer only YES or NO.

Question: does this photo contain %s?

Answer ONLY with:
- YES if you clearly detect %s in the image
- NO otherwise

Give no explanation, just YES or NO.`

// Client drives a provider with per-call timeouts and bounded retry. A call
// that exhausts its retries degrades to zero phrases at the session level;
// it never aborts the batch.
type Client struct {
	provider    Provider
	model       string
	language    string
	temperature float64
	maxTags     int
	timeout     time.Duration
	maxRetries  uint64
	newBackoff  func() backoff.BackOff
}

type Options struct {
	Model       string
	Language    string
	Temperature float64
	MaxTags     int
	Timeout     time.Duration
	MaxRetries  int
}

func NewClient(p Provider, opts Options) *Client {
	c := &Client{
		provider:    p,
		model:       opts.Model,
		language:    opts.Language,
		temperature: opts.Temperature,
		maxTags:     opts.MaxTags,
		timeout:     opts.Timeout,
		maxRetries:  uint64(opts.MaxRetries),
	}
	c.newBackoff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 2 * time.Second
		b.MaxInterval = 30 * time.Second
		return backoff.WithMaxRetries(b, c.maxRetries)
	}
	return c
}

// GenerateTags asks for free-text descriptive keywords (auto mode) and
// returns the cleaned, deduplicated phrases in model output order.
func (c *Client) GenerateTags(ctx context.Context, imagePath string) ([]string, error) {
	prompt := fmt.Sprintf(autoPromptTemplate, c.language, c.maxTags)
	raw, err := c.generate(ctx, prompt, imagePath, 100)
	if err != nil {
		return nil, err
	}
	return ParsePhrases(raw), nil
}

// CheckCriterion asks one yes/no question about the image (targeted mode).
// One call per criterion; a photo with N mappings costs N inference calls.
func (c *Client) CheckCriterion(ctx context.Context, imagePath, criterion string) (bool, error) {
	prompt := fmt.Sprintf(targetedPromptTemplate, criterion, criterion)
	raw, err := c.generate(ctx, prompt, imagePath, 10)
	if err != nil {
		return false, err
	}
	answer := strings.ToUpper(strings.TrimSpace(raw))
	return strings.Contains(answer, "YES") || strings.Contains(answer, "OUI"), nil
}

// generate performs one bounded, retried provider call. The timeout applies
// per attempt; transient failures back off exponentially, permanent ones
// stop immediately.
func (c *Client) generate(ctx context.Context, prompt, imagePath string, maxTokens int) (string, error) {
	req := Request{
		Model:       c.model,
		Prompt:      prompt,
		ImagePath:   imagePath,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}

	attempt := 0
	operation := func() (string, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		out, err := c.provider.Generate(callCtx, req)
		if err != nil {
			if IsTransient(err) && ctx.Err() == nil {
				slog.Warn("Inference call failed, will retry", "attempt", attempt, "err", err)
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return out, nil
	}

	out, err := backoff.RetryWithData(operation, backoff.WithContext(c.newBackoff(), ctx))
	if err != nil {
		return "", fmt.Errorf("inference failed after %d attempt(s): %w", attempt, err)
	}
	return out, nil
}
