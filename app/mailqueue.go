package app

import (
	"context"
	"encoding/json"
	"log"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/samouzou/verza/app/models"
)

// MailEnqueuer pushes a mail message onto the outbound queue. The sweeper
// only enqueues; cmd/mailworker does the actual provider call.
type MailEnqueuer interface {
	Enqueue(ctx context.Context, msg models.MailMessage) error
}

// MailQueue is the SQS-backed mail queue shared by the sweeper (producer)
// and the mail worker (consumer).
type MailQueue struct {
	client   *sqs.Client
	queueURL string
}

func NewMailQueue(ctx context.Context, queueURL string) (*MailQueue, error) {
	if queueURL == "" {
		return nil, validationErrorf("missing mail queue url")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &MailQueue{client: sqs.NewFromConfig(awsCfg), queueURL: queueURL}, nil
}

func (q *MailQueue) Enqueue(ctx context.Context, msg models.MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return gatewayError("failed to enqueue mail message", err)
	}
	return nil
}

// Consume long-polls the queue and hands each message to send. A send
// failure leaves the message invisible until the visibility timeout lapses
// and SQS redelivers it; malformed payloads are deleted so they cannot
// poison the queue.
func (q *MailQueue) Consume(ctx context.Context, send func(context.Context, models.MailMessage) error) error {
	log.Printf("mail worker started, listening on queue: %s", q.queueURL)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		recvCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		resp, err := q.client.ReceiveMessage(recvCtx, &sqs.ReceiveMessageInput{
			QueueUrl:            &q.queueURL,
			MaxNumberOfMessages: 5,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   60,
		})
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("ReceiveMessage error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		if len(resp.Messages) == 0 {
			time.Sleep(2 * time.Second)
			continue
		}

		for _, m := range resp.Messages {
			if m.Body == nil {
				continue
			}

			var msg models.MailMessage
			if err := json.Unmarshal([]byte(*m.Body), &msg); err != nil {
				log.Printf("failed to unmarshal mail message: %v body=%s", err, *m.Body)
				q.deleteMessage(m)
				continue
			}

			sendCtx, sendCancel := context.WithTimeout(ctx, 30*time.Second)
			err := send(sendCtx, msg)
			sendCancel()

			if err != nil {
				log.Printf("mail send failed kind=%s to=%s contract=%s err=%v",
					msg.Kind, msg.To, msg.ContractID, err)
				// Leave it for redelivery.
				continue
			}

			q.deleteMessage(m)
		}
	}
}

func (q *MailQueue) deleteMessage(m sqstypes.Message) {
	if m.ReceiptHandle == nil {
		return
	}
	_, err := q.client.DeleteMessage(context.Background(), &sqs.DeleteMessageInput{
		QueueUrl:      &q.queueURL,
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		log.Printf("failed to delete mail queue message: %v", err)
	}
}
