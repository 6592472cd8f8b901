package kafka

import (
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/stickerai/credits-service/internal/kafka/producer"
	"github.com/stickerai/credits-service/pkg/logger"
)

// EnsureTopics проверяет и создает необходимые топики Kafka.
func EnsureTopics(cfg *Config, log *logger.Logger) error {
	requiredTopics := map[string]*sarama.TopicDetail{
		producer.TopicTransactionCreated: {
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
		producer.TopicPurchaseCompleted: {
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
		producer.TopicPurchaseRefunded: {
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
		producer.TopicSubscriptionCreated: {
			NumPartitions:     2,
			ReplicationFactor: 1,
		},
		producer.TopicSubscriptionRenewed: {
			NumPartitions:     2,
			ReplicationFactor: 1,
		},
		producer.TopicSubscriptionCanceled: {
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
		producer.TopicSubscriptionExpired: {
			NumPartitions:     1,
			ReplicationFactor: 1,
		},
	}

	if len(cfg.Brokers) == 0 || cfg.Brokers[0] == "" {
		log.Errorw("Kafka broker address is empty")
		return errors.New("kafka broker address is empty")
	}

	admin, err := sarama.NewClusterAdmin(cfg.Brokers, NewSaramaConfig(cfg, log))
	if err != nil {
		log.Errorw("Failed to connect to Kafka for topic creation", "brokers", cfg.Brokers, "error", err)
		return fmt.Errorf("kafka admin connection failed: %w", err)
	}
	defer admin.Close()

	existing, err := admin.ListTopics()
	if err != nil {
		log.Errorw("Failed to list Kafka topics", "error", err)
		return fmt.Errorf("kafka list topics failed: %w", err)
	}

	created := 0
	for name, detail := range requiredTopics {
		if _, ok := existing[name]; ok {
			log.Debugw("Topic already exists", "topic", name)
			continue
		}
		if err := admin.CreateTopic(name, detail, false); err != nil {
			var topicErr *sarama.TopicError
			if errors.As(err, &topicErr) && topicErr.Err == sarama.ErrTopicAlreadyExists {
				log.Warnw("Topic already existed during creation attempt", "topic", name)
				continue
			}
			log.Errorw("Failed to create topic", "topic", name, "error", err)
			return fmt.Errorf("kafka create topic %s failed: %w", name, err)
		}
		log.Infow("Created Kafka topic", "topic", name)
		created++
	}

	if created == 0 {
		log.Infow("All required Kafka topics already exist")
	}
	return nil
}
