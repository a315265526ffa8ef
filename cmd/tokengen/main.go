// Command tokengen mints an access token for local development and can
// write it straight into a client session file.
//
//	tokengen -s secretKey -u acc-1 -o session.json -entitled
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dmitrijs2005/cbtjournal/internal/client/account"
	"github.com/dmitrijs2005/cbtjournal/internal/server/auth"
)

func main() {
	secret := flag.String("s", "secretKey", "JWT HMAC secret key")
	accountID := flag.String("u", "", "account id")
	ttl := flag.Duration("t", 24*time.Hour, "token validity")
	out := flag.String("o", "", "session file to write (prints the token when empty)")
	entitled := flag.Bool("entitled", false, "mark the session as entitled to AI analysis")
	flag.Parse()

	if *accountID == "" {
		log.Fatal("-u is required")
	}

	token, err := auth.GenerateToken(*accountID, []byte(*secret), *ttl)
	if err != nil {
		log.Fatalf("generate token: %v", err)
	}

	if *out == "" {
		fmt.Println(token)
		return
	}

	s := &account.Session{AccountID: *accountID, AccessToken: token, Entitled: *entitled}
	if err := account.WriteSession(*out, s); err != nil {
		log.Fatalf("write session: %v", err)
	}
	fmt.Printf("session for %s written to %s\n", *accountID, *out)
}
