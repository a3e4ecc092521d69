package services

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"alfredoptarigan/job-orchestrator/internal/repositories"
)

const pollFetchLimit = 25

// InboundPoller reads every active mailbox on a cron schedule and hands new
// messages to the worker.
type InboundPoller interface {
	Start() error
	Stop()
	PollOnce(ctx context.Context) int
}

type inboundPoller struct {
	credRepo    repositories.CredentialRepository
	tenantRepo  repositories.TenantRepository
	credentials CredentialService
	mail        MailProvider
	worker      Worker
	schedule    string
	cron        *cron.Cron
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewInboundPoller(
	credRepo repositories.CredentialRepository,
	tenantRepo repositories.TenantRepository,
	credentials CredentialService,
	mail MailProvider,
	worker Worker,
	schedule string,
) InboundPoller {
	ctx, cancel := context.WithCancel(context.Background())
	return &inboundPoller{
		credRepo:    credRepo,
		tenantRepo:  tenantRepo,
		credentials: credentials,
		mail:        mail,
		worker:      worker,
		schedule:    schedule,
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start implements InboundPoller.
func (p *inboundPoller) Start() error {
	if _, err := p.cron.AddFunc(p.schedule, func() { p.PollOnce(p.ctx) }); err != nil {
		return fmt.Errorf("failed to schedule inbound poll %q: %w", p.schedule, err)
	}
	p.cron.Start()
	log.Printf("🔄 Inbound poller scheduled %q", p.schedule)
	return nil
}

// Stop implements InboundPoller.
func (p *inboundPoller) Stop() {
	p.cancel()
	<-p.cron.Stop().Done()
	log.Println("🔄 Inbound poller stopped")
}

// PollOnce implements InboundPoller. It returns the number of messages
// enqueued. A failing mailbox is logged and skipped.
func (p *inboundPoller) PollOnce(ctx context.Context) int {
	creds, err := p.credRepo.ListActive(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to list active credentials: %v\n", err)
		return 0
	}

	enqueued := 0
	for i := range creds {
		cred := &creds[i]

		tenant, err := p.tenantRepo.FindByID(ctx, cred.UserID)
		if err != nil {
			log.Printf("⚠️  Skipping mailbox %s: %v\n", cred.SenderEmail, err)
			continue
		}

		grant, err := p.credentials.Exchange(ctx, cred)
		if err != nil {
			log.Printf("⚠️  Skipping mailbox %s: %v\n", cred.SenderEmail, err)
			continue
		}

		messages, err := p.mail.FetchRecent(ctx, grant, pollFetchLimit)
		if err != nil {
			log.Printf("⚠️  Failed to fetch %s: %v\n", cred.SenderEmail, err)
			continue
		}

		if len(messages) > 0 {
			log.Printf("📋 Found %d recent messages in %s\n", len(messages), cred.SenderEmail)
		}
		for _, msg := range messages {
			if p.worker.Enqueue(InboundJob{Tenant: tenant, Message: msg}) {
				enqueued++
			}
		}
	}

	return enqueued
}
