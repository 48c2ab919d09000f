// Package utils holds the CLI plumbing shared by commands: the Viper-backed
// ConfigurationLoader (with dotenv support) and the zap LoggerFactory.
package utils
