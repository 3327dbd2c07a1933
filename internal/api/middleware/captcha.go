package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/pasindubuddhika1999/findmyphone/internal/captcha"
	"github.com/pasindubuddhika1999/findmyphone/internal/config"
)

const (
	// ContextKeyIsHumanVerified holds the key for captcha status in Gin context.
	ContextKeyIsHumanVerified = "isHumanVerified"
)

func clientFingerprint(c *gin.Context) captcha.ClientFingerprint {
	return captcha.ClientFingerprint{
		IP:          c.ClientIP(),
		Fingerprint: c.GetHeader("X-BFP"),
		SPASession:  c.GetHeader("X-SPA"),
	}
}

// CaptchaMiddleware marks the request as human when it carries a valid X-C-T
// token, or solves a Turnstile challenge passed in X-C-V. A solved challenge
// is answered with a fresh X-C-T header.
func CaptchaMiddleware(cfg *config.Config, verifier captcha.ITurnstileVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		client := clientFingerprint(c)
		humanToken := c.GetHeader("X-C-T")
		challenge := c.GetHeader("X-C-V")

		isHuman := humanToken != "" && verifier.ValidateHumanToken(humanToken, client)

		if !isHuman && challenge != "" {
			verified, err := verifier.Verify(c.Request.Context(), challenge, client.IP)
			switch {
			case err != nil:
				// Treated as not human; the rate limiter decides.
				log.Printf("Error verifying Turnstile token for %s: %v", client, err)
			case verified:
				isHuman = true
				token, err := verifier.GenerateHumanToken(client, cfg.CaptchaTokenTTL)
				if err != nil {
					log.Printf("Error generating X-C-T token after successful verification: %v", err)
				} else {
					c.Header("X-C-T", token)
				}
			}
		}

		c.Set(ContextKeyIsHumanVerified, isHuman)
		c.Next()
	}
}
