package main

import (
	"flag"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"submission-relay/internal/models"
	"submission-relay/internal/monitor"
)

func main() {
	monitorURL := flag.String("url", "http://localhost:8080/api/monitor", "monitor endpoint URL")
	secretKey := flag.String("key", "", "API secret key")
	flag.Parse()

	u, err := url.Parse(*monitorURL)
	if err != nil {
		log.Fatal("Invalid monitor URL: ", err)
	}
	if *secretKey != "" {
		q := u.Query()
		q.Set("secretKey", *secretKey)
		u.RawQuery = q.Encode()
	}

	client := monitor.NewClient(u.String())
	client.OnStatus = func(status string) {
		log.Printf("[STATUS] %s", status)
	}
	client.OnEvent = func(event *models.SubmissionEvent) {
		log.Printf("[SUBMISSION] %s team=%s file=%s url=%s source=%s",
			event.Timestamp.Format("15:04:05"), event.Teamname, event.Filename, event.CodeURL, event.Source)
	}

	if err := client.Connect(); err != nil {
		log.Fatal("Failed to start observer: ", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Print("Disconnecting from monitor")
	client.Disconnect()
}
