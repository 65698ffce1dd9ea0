package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/DRSN-tech/search-backend/pkg/e"
	"github.com/DRSN-tech/search-backend/pkg/logger"
	"github.com/jimlawless/whereami"
)

type Config struct {
	Minio   *MinIOCfg
	Http    *HTTPConfig
	Db      *PGDBCfg
	Qdrant  *QdrantCfg
	Redis   *RedisCfg
	Encoder *EncoderCfg
	Kafka   *KafkaCfg
	Search  *SearchCfg
	Index   *IndexCfg
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название конкретного бакета в Minio
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
	UploadImagesLimit int // Лимит на макс кол-во загружаемых в S3 фото
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя активной коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64
}

type RedisCfg struct {
	Addr         string
	Password     string
	User         string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	Timeout      time.Duration
	ProductTTL   time.Duration
	EmbeddingTTL time.Duration
	SearchTTL    time.Duration
}

// EncoderCfg описывает подключение к сервису мультимодального энкодера
type EncoderCfg struct {
	Addr          string // базовый URL, например http://encoder:8000
	Timeout       time.Duration
	MaxConcurrent int
	MaxRetries    int
	BatchSize     int
}

// SearchCfg задает параметры поискового конвейера
type SearchCfg struct {
	DefaultWeight   float64 // вес изображения по умолчанию на запросе
	BuildWeight     float64 // фиксированный вес слияния при построении индекса
	DefaultTopK     int
	MaxTopK         int
	OverfetchFactor int // во сколько раз больше кандидатов забирать до фильтров
}

// IndexCfg выбирает бэкенд векторного индекса
type IndexCfg struct {
	Backend      string // qdrant | memory
	SnapshotPath string // путь снапшота для memory-бэкенда
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	search, err := loadSearchCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Minio:   minio,
		Http:    http,
		Db:      db,
		Qdrant:  qdrant,
		Redis:   redis,
		Encoder: loadEncoderCfg(),
		Kafka:   kafka,
		Search:  search,
		Index:   loadIndexCfg(),
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	networkMode := getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode)

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       networkMode,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnv("BUCKET_NAME"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		UploadImagesLimit: 10,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadQdrantCfg(logger logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "512"
		defaultCollection     = "products"
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		logger.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	strVectorSize := getEnvOrDefault("VECTOR_SIZE", defaultVectorSize)
	vectorSize, err := strconv.ParseUint(strVectorSize, 10, 64)
	if err != nil {
		logger.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnv("QDRANT_HOST"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnvOrDefault("COLLECTION_NAME", defaultCollection),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultProductTTL   = 3 * time.Minute
		defaultEmbeddingTTL = 24 * time.Hour
		defaultSearchTTL    = time.Hour
	)

	addr := getEnvOrDefault("REDIS_ADDR", defaultAddr)
	password := getEnv("REDIS_PASSWORD")
	user := getEnv("REDIS_USER")

	dbStr := getEnvOrDefault("REDIS_DB_ID", strconv.Itoa(defaultDB))
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetriesStr := getEnvOrDefault("MAX_RETRIES", strconv.Itoa(defaultMaxRetries))
	maxRetries, err := strconv.Atoi(maxRetriesStr)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	productTTL, err := parseDurationEnv("PRODUCT_TTL", defaultProductTTL)
	if err != nil {
		log.Errorf(err, "invalid PRODUCT_TTL")
		return nil, err
	}

	embeddingTTL, err := parseDurationEnv("EMBEDDING_TTL", defaultEmbeddingTTL)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDING_TTL")
		return nil, err
	}

	searchTTL, err := parseDurationEnv("SEARCH_TTL", defaultSearchTTL)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:         addr,
		Password:     password,
		User:         user,
		DB:           db,
		MaxRetries:   maxRetries,
		DialTimeout:  dialTimeout,
		Timeout:      timeout,
		ProductTTL:   productTTL,
		EmbeddingTTL: embeddingTTL,
		SearchTTL:    searchTTL,
	}, nil
}

func loadEncoderCfg() *EncoderCfg {
	const (
		defaultAddr          = "http://encoder:8000"
		defaultTimeout       = 30 * time.Second
		defaultMaxConcurrent = 8
		defaultMaxRetries    = 3
		defaultBatchSize     = 16
	)

	timeout, err := parseDurationEnv("ENCODER_TIMEOUT", defaultTimeout)
	if err != nil {
		timeout = defaultTimeout
	}

	maxConcurrent, err := parseIntEnv("ENCODER_MAX_CONCURRENT", defaultMaxConcurrent)
	if err != nil {
		maxConcurrent = defaultMaxConcurrent
	}

	maxRetries, err := parseIntEnv("ENCODER_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		maxRetries = defaultMaxRetries
	}

	batchSize, err := parseIntEnv("ENCODER_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		batchSize = defaultBatchSize
	}

	return &EncoderCfg{
		Addr:          getEnvOrDefault("ENCODER_ADDR", defaultAddr),
		Timeout:       timeout,
		MaxConcurrent: maxConcurrent,
		MaxRetries:    maxRetries,
		BatchSize:     batchSize,
	}
}

func loadSearchCfg(log logger.Logger) (*SearchCfg, error) {
	const (
		defaultWeight          = "0.7"
		defaultBuildWeight     = "0.5"
		defaultTopK            = 10
		defaultMaxTopK         = 100
		defaultOverfetchFactor = 2
	)

	weight, err := strconv.ParseFloat(getEnvOrDefault("SEARCH_DEFAULT_WEIGHT", defaultWeight), 64)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_DEFAULT_WEIGHT")
		return nil, err
	}

	buildWeight, err := strconv.ParseFloat(getEnvOrDefault("SEARCH_BUILD_WEIGHT", defaultBuildWeight), 64)
	if err != nil {
		log.Errorf(err, "invalid SEARCH_BUILD_WEIGHT")
		return nil, err
	}

	if weight < 0 || weight > 1 || buildWeight < 0 || buildWeight > 1 {
		err := e.ErrWeightOutOfRange
		log.Errorf(err, "fusion weights must be in [0,1]")
		return nil, err
	}

	topK, err := parseIntEnv("SEARCH_DEFAULT_TOP_K", defaultTopK)
	if err != nil {
		return nil, e.Wrap("SEARCH_DEFAULT_TOP_K", err)
	}

	maxTopK, err := parseIntEnv("SEARCH_MAX_TOP_K", defaultMaxTopK)
	if err != nil {
		return nil, e.Wrap("SEARCH_MAX_TOP_K", err)
	}

	overfetch, err := parseIntEnv("SEARCH_OVERFETCH_FACTOR", defaultOverfetchFactor)
	if err != nil {
		return nil, e.Wrap("SEARCH_OVERFETCH_FACTOR", err)
	}

	return &SearchCfg{
		DefaultWeight:   weight,
		BuildWeight:     buildWeight,
		DefaultTopK:     topK,
		MaxTopK:         maxTopK,
		OverfetchFactor: overfetch,
	}, nil
}

func loadIndexCfg() *IndexCfg {
	const (
		defaultBackend      = "qdrant"
		defaultSnapshotPath = "data/index.json"
	)

	return &IndexCfg{
		Backend:      getEnvOrDefault("INDEX_BACKEND", defaultBackend),
		SnapshotPath: getEnvOrDefault("FLAT_INDEX_PATH", defaultSnapshotPath),
	}
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
